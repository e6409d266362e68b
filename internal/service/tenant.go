package service

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"regtrack/internal/apperr"
	"regtrack/internal/database"
	"regtrack/internal/models"
)

type TenantProfile struct {
	Name             string                  `json:"name"`
	LicenseTier      models.LicenseTier      `json:"license_tier"`
	SubscriptionTier models.SubscriptionTier `json:"subscription_tier"`
}

func (p *TenantProfile) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if err := requireText("tenant name", p.Name); err != nil {
		return err
	}
	if err := validEnum(p.LicenseTier.Valid(), "license tier", p.LicenseTier); err != nil {
		return err
	}
	return validEnum(p.SubscriptionTier.Valid(), "subscription tier", p.SubscriptionTier)
}

type UserProfile struct {
	ExternalID string          `json:"external_id"`
	Email      string          `json:"email"`
	Name       string          `json:"name"`
	Role       models.UserRole `json:"role"`
}

func (p *UserProfile) validate() error {
	p.ExternalID = strings.TrimSpace(p.ExternalID)
	p.Email = strings.TrimSpace(p.Email)
	p.Name = strings.TrimSpace(p.Name)
	if err := requireText("external id", p.ExternalID); err != nil {
		return err
	}
	return validEnum(p.Role.Valid(), "role", p.Role)
}

// PersonInput seeds a director or risk officer.
type PersonInput struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	UserID *uint  `json:"user_id,omitempty"`
}

func (p *PersonInput) validate(kind string) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	return requireText(kind+" name", p.Name)
}

type OnboardingRequest struct {
	Tenant       TenantProfile `json:"tenant"`
	Admin        UserProfile   `json:"admin"`
	Directors    []PersonInput `json:"directors"`
	RiskOfficers []PersonInput `json:"risk_officers"`
}

type OnboardingResult struct {
	Tenant       models.Tenant        `json:"tenant"`
	Admin        models.User          `json:"admin"`
	Directors    []models.Director    `json:"directors"`
	RiskOfficers []models.RiskOfficer `json:"risk_officers"`
}

// ====== PROVISIONING ======

// CreateTenant provisions an active tenant. It has no tenant context; callers
// are provisioning processes, not tenant users.
func (s *Service) CreateTenant(ctx context.Context, profile TenantProfile) (*models.Tenant, error) {
	if err := profile.validate(); err != nil {
		return nil, err
	}
	var tenant models.Tenant
	err := s.inTx(ctx, "create_tenant", func(tx *gorm.DB) error {
		var err error
		tenant, err = createTenant(tx, profile)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func createTenant(tx *gorm.DB, profile TenantProfile) (models.Tenant, error) {
	tenant := models.Tenant{
		Name:             profile.Name,
		LicenseTier:      profile.LicenseTier,
		SubscriptionTier: profile.SubscriptionTier,
		Status:           models.TenantActive,
	}
	if err := tx.Create(&tenant).Error; err != nil {
		return tenant, err
	}
	err := database.AppendAudit(tx, tenant.ID, nil, "tenant", tenant.ID, "create", map[string]any{
		"name":              tenant.Name,
		"license_tier":      tenant.LicenseTier,
		"subscription_tier": tenant.SubscriptionTier,
	})
	return tenant, err
}

// CreateUser provisions a user under tenantID. A missing tenant is a
// referential failure; a reused external id is a uniqueness violation.
func (s *Service) CreateUser(ctx context.Context, tenantID uint, profile UserProfile) (*models.User, error) {
	if err := profile.validate(); err != nil {
		return nil, err
	}
	var user models.User
	err := s.inTx(ctx, "create_user", func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Tenant{}).Where("id = ?", tenantID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.Newf(apperr.CodeReferential, "tenant %d not found", tenantID)
		}
		var err error
		user, err = createUser(tx, tenantID, nil, profile)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func createUser(tx *gorm.DB, tenantID uint, actorID *uint, profile UserProfile) (models.User, error) {
	user := models.User{
		TenantID:   tenantID,
		ExternalID: profile.ExternalID,
		Email:      profile.Email,
		Name:       profile.Name,
		Role:       profile.Role,
	}
	if err := tx.Create(&user).Error; err != nil {
		return user, err
	}
	err := database.AppendAudit(tx, tenantID, actorID, "user", user.ID, "create", map[string]any{
		"external_id": user.ExternalID,
		"role":        user.Role,
	})
	return user, err
}

// Onboard writes the tenant, its first admin and the seeded board and risk
// officers in one transaction.
func (s *Service) Onboard(ctx context.Context, req OnboardingRequest) (*OnboardingResult, error) {
	if err := req.Tenant.validate(); err != nil {
		return nil, err
	}
	req.Admin.Role = models.RoleAdmin
	if err := req.Admin.validate(); err != nil {
		return nil, err
	}
	for i := range req.Directors {
		if err := req.Directors[i].validate("director"); err != nil {
			return nil, err
		}
		if req.Directors[i].UserID != nil {
			return nil, apperr.New(apperr.CodeValidation, "directors cannot be linked to users at onboarding")
		}
	}
	for i := range req.RiskOfficers {
		if err := req.RiskOfficers[i].validate("risk officer"); err != nil {
			return nil, err
		}
		if req.RiskOfficers[i].UserID != nil {
			return nil, apperr.New(apperr.CodeValidation, "risk officers cannot be linked to users at onboarding")
		}
	}

	var res OnboardingResult
	err := s.inTx(ctx, "onboard", func(tx *gorm.DB) error {
		var err error
		if res.Tenant, err = createTenant(tx, req.Tenant); err != nil {
			return err
		}
		if res.Admin, err = createUser(tx, res.Tenant.ID, nil, req.Admin); err != nil {
			return err
		}
		a := &actor{user: res.Admin, tenant: res.Tenant}
		for _, d := range req.Directors {
			director, err := addDirector(tx, a, d)
			if err != nil {
				return err
			}
			res.Directors = append(res.Directors, director)
		}
		for _, o := range req.RiskOfficers {
			officer, err := addRiskOfficer(tx, a, o)
			if err != nil {
				return err
			}
			res.RiskOfficers = append(res.RiskOfficers, officer)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ====== TENANT ADMINISTRATION ======

func (s *Service) GetTenant(ctx context.Context, tc TenantContext) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.inTx(ctx, "get_tenant", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		tenant = a.tenant
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

type TenantSettings struct {
	Name             *string                  `json:"name,omitempty"`
	LicenseTier      *models.LicenseTier      `json:"license_tier,omitempty"`
	SubscriptionTier *models.SubscriptionTier `json:"subscription_tier,omitempty"`
}

func (s *Service) UpdateTenantSettings(ctx context.Context, tc TenantContext, in TenantSettings) (*models.Tenant, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := requireText("tenant name", name); err != nil {
			return nil, err
		}
		in.Name = &name
	}
	if in.LicenseTier != nil {
		if err := validEnum(in.LicenseTier.Valid(), "license tier", *in.LicenseTier); err != nil {
			return nil, err
		}
	}
	if in.SubscriptionTier != nil {
		if err := validEnum(in.SubscriptionTier.Valid(), "subscription tier", *in.SubscriptionTier); err != nil {
			return nil, err
		}
	}

	var tenant models.Tenant
	err := s.inTx(ctx, "update_tenant_settings", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permAdmin)
		if err != nil {
			return err
		}
		tenant = a.tenant
		changes := map[string]any{}
		if in.Name != nil && *in.Name != tenant.Name {
			changes["name"] = *in.Name
		}
		if in.LicenseTier != nil && *in.LicenseTier != tenant.LicenseTier {
			changes["license_tier"] = *in.LicenseTier
		}
		if in.SubscriptionTier != nil && *in.SubscriptionTier != tenant.SubscriptionTier {
			changes["subscription_tier"] = *in.SubscriptionTier
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&tenant).Updates(changes).Error; err != nil {
			return err
		}
		if err := tx.First(&tenant, tenant.ID).Error; err != nil {
			return err
		}
		return a.audit(tx, "tenant", tenant.ID, "update_settings", changes)
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// SetTenantStatus is the only way to retire a tenant; rows are never deleted.
func (s *Service) SetTenantStatus(ctx context.Context, tc TenantContext, status models.TenantStatus) (*models.Tenant, error) {
	if err := validEnum(status.Valid(), "tenant status", status); err != nil {
		return nil, err
	}
	var tenant models.Tenant
	err := s.inTx(ctx, "set_tenant_status", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permAdmin)
		if err != nil {
			return err
		}
		tenant = a.tenant
		if !tenant.Status.CanTransitionTo(status) {
			return badTransition("tenant", tenant.Status, status)
		}
		from := tenant.Status
		tenant.Status = status
		if err := tx.Model(&tenant).Update("status", status).Error; err != nil {
			return err
		}
		return a.audit(tx, "tenant", tenant.ID, "status_change", map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ====== USERS ======

// InviteUser adds a user to the caller's tenant.
func (s *Service) InviteUser(ctx context.Context, tc TenantContext, profile UserProfile) (*models.User, error) {
	if err := profile.validate(); err != nil {
		return nil, err
	}
	var user models.User
	err := s.inTx(ctx, "invite_user", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permAdmin)
		if err != nil {
			return err
		}
		user, err = createUser(tx, a.tenant.ID, a.userID(), profile)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangeUserRole takes effect on the user's next call since roles are read
// per operation.
func (s *Service) ChangeUserRole(ctx context.Context, tc TenantContext, userID uint, role models.UserRole) (*models.User, error) {
	if err := validEnum(role.Valid(), "role", role); err != nil {
		return nil, err
	}
	var user *models.User
	err := s.inTx(ctx, "change_user_role", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permAdmin)
		if err != nil {
			return err
		}
		if user, err = loadForUpdate[models.User](tx, a.tenant.ID, userID, "user"); err != nil {
			return err
		}
		if user.Role == role {
			return nil
		}
		if user.ID == a.user.ID && role != models.RoleAdmin {
			var admins int64
			if err := scoped(tx, a.tenant.ID).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
				return err
			}
			if admins <= 1 {
				return apperr.New(apperr.CodeValidation, "tenant must keep at least one admin")
			}
		}
		from := user.Role
		user.Role = role
		if err := tx.Model(user).Update("role", role).Error; err != nil {
			return err
		}
		return a.audit(tx, "user", user.ID, "role_change", map[string]any{"from": from, "to": role})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, tc TenantContext) ([]models.User, error) {
	var users []models.User
	err := s.inTx(ctx, "list_users", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("id").Find(&users).Error
	})
	return users, err
}

// UserByExternalID resolves an identity-provider subject to the local user.
// It is the only lookup that is not tenant-scoped: it establishes the tenant.
func (s *Service) UserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := s.inTx(ctx, "user_by_external_id", func(tx *gorm.DB) error {
		return tx.Where("external_id = ?", externalID).First(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ====== DIRECTORS & RISK OFFICERS ======

func addDirector(tx *gorm.DB, a *actor, in PersonInput) (models.Director, error) {
	d := models.Director{
		TenantID: a.tenant.ID,
		Name:     in.Name,
		Email:    in.Email,
		Active:   true,
		UserID:   in.UserID,
	}
	if err := ref[models.User](tx, a.tenant.ID, in.UserID, "user"); err != nil {
		return d, err
	}
	if err := tx.Create(&d).Error; err != nil {
		return d, err
	}
	return d, a.audit(tx, "director", d.ID, "create", map[string]any{"name": d.Name})
}

func addRiskOfficer(tx *gorm.DB, a *actor, in PersonInput) (models.RiskOfficer, error) {
	o := models.RiskOfficer{
		TenantID: a.tenant.ID,
		Name:     in.Name,
		Email:    in.Email,
		UserID:   in.UserID,
	}
	if err := ref[models.User](tx, a.tenant.ID, in.UserID, "user"); err != nil {
		return o, err
	}
	if err := tx.Create(&o).Error; err != nil {
		return o, err
	}
	return o, a.audit(tx, "risk_officer", o.ID, "create", map[string]any{"name": o.Name})
}

func (s *Service) AddDirector(ctx context.Context, tc TenantContext, in PersonInput) (*models.Director, error) {
	if err := in.validate("director"); err != nil {
		return nil, err
	}
	var d models.Director
	err := s.inTx(ctx, "add_director", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permAdmin)
		if err != nil {
			return err
		}
		d, err = addDirector(tx, a, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SetDirectorActive retires or reinstates a board member. Inactive directors
// are skipped when approvals are requested.
func (s *Service) SetDirectorActive(ctx context.Context, tc TenantContext, directorID uint, active bool) (*models.Director, error) {
	var d *models.Director
	err := s.inTx(ctx, "set_director_active", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permAdmin)
		if err != nil {
			return err
		}
		if d, err = loadForUpdate[models.Director](tx, a.tenant.ID, directorID, "director"); err != nil {
			return err
		}
		if d.Active == active {
			return nil
		}
		d.Active = active
		if err := tx.Model(d).Update("active", active).Error; err != nil {
			return err
		}
		return a.audit(tx, "director", d.ID, "set_active", map[string]any{"active": active})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDirectors(ctx context.Context, tc TenantContext) ([]models.Director, error) {
	var out []models.Director
	err := s.inTx(ctx, "list_directors", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("id").Find(&out).Error
	})
	return out, err
}

func (s *Service) AddRiskOfficer(ctx context.Context, tc TenantContext, in PersonInput) (*models.RiskOfficer, error) {
	if err := in.validate("risk officer"); err != nil {
		return nil, err
	}
	var o models.RiskOfficer
	err := s.inTx(ctx, "add_risk_officer", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permAdmin)
		if err != nil {
			return err
		}
		o, err = addRiskOfficer(tx, a, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Service) ListRiskOfficers(ctx context.Context, tc TenantContext) ([]models.RiskOfficer, error) {
	var out []models.RiskOfficer
	err := s.inTx(ctx, "list_risk_officers", func(tx *gorm.DB) error {
		a, err := s.authorize(tx, tc, permRead)
		if err != nil {
			return err
		}
		return scoped(tx, a.tenant.ID).Order("id").Find(&out).Error
	})
	return out, err
}
