package database

import "database/sql"

// execRequireRows returns err if set, or missingErr when no row was affected.
func execRequireRows(result sql.Result, err, missingErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return missingErr
	}
	return nil
}
