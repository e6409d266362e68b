package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantScope is the mandatory predicate for every tenant-owned query. The
// column is qualified with the statement's own table so it stays unambiguous
// in joins.
func TenantScope(tenantID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: "tenant_id"},
			Value:  tenantID,
		})
	}
}
