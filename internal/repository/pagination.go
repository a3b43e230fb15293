package repository

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// paginate normalizes page/limit and returns the row offset.
func paginate(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return (page - 1) * limit, limit
}
