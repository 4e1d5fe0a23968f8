package postgres

// Postgres implements the storage-access layer over gorm. Methods
// return net/http status codes alongside results, matching the error
// handling convention used across the codebase.
type Postgres struct {
}
