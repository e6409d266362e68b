package catalog

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"regtrack/internal/apperr"
	"regtrack/internal/database"
	"regtrack/internal/models"
)

// Summary counts what one import wrote.
type Summary struct {
	Regulations  int
	Sections     int
	Requirements int
}

type Importer struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewImporter(db *gorm.DB, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{db: db, log: log}
}

// Import writes every regulation of f in one transaction. A (code, version)
// that is already stored fails the whole import with a uniqueness violation;
// published versions are never rewritten.
func (im *Importer) Import(ctx context.Context, f *File) (Summary, error) {
	var sum Summary
	err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range f.Regulations {
			if err := importRegulation(tx, &f.Regulations[i], &sum); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case apperr.IsCoded(err):
		case database.IsUniqueViolation(err):
			err = apperr.Wrap(err, apperr.CodeUniqueness, "regulation version already imported")
		default:
			err = apperr.Wrap(err, apperr.CodeInternal, "import catalog")
		}
		im.log.Error("catalog import failed", zap.Error(err))
		return Summary{}, err
	}
	im.log.Info("catalog imported",
		zap.Int("regulations", sum.Regulations),
		zap.Int("sections", sum.Sections),
		zap.Int("requirements", sum.Requirements),
	)
	return sum, nil
}

func importRegulation(tx *gorm.DB, r *Regulation, sum *Summary) error {
	reg := models.Regulation{
		Code:          r.Code,
		Version:       r.Version,
		Title:         r.Title,
		Issuer:        r.Issuer,
		EffectiveFrom: r.EffectiveFrom,
	}
	if err := tx.Create(&reg).Error; err != nil {
		return err
	}
	sum.Regulations++

	// order is shared across the whole tree so a flat sort on SortOrder
	// reproduces depth-first document order
	order := 0
	var walk func(sections []Section, parentID *uint) error
	walk = func(sections []Section, parentID *uint) error {
		for i := range sections {
			s := &sections[i]
			order++
			row := models.Section{
				RegulationID: reg.ID,
				ParentID:     parentID,
				Ref:          s.Ref,
				Title:        s.Title,
				SortOrder:    order,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			sum.Sections++
			for _, req := range s.Requirements {
				rr := models.Requirement{
					RegulationID: reg.ID,
					SectionID:    row.ID,
					Code:         req.Code,
					Title:        req.Title,
					Description:  req.Description,
					Frequency:    req.Frequency,
					Priority:     req.Priority,
					MinTier:      req.MinTier,
					Module:       req.Module,
				}
				if err := tx.Create(&rr).Error; err != nil {
					return err
				}
				sum.Requirements++
			}
			id := row.ID
			if err := walk(s.Sections, &id); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(r.Sections, nil)
}
