package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"regtrack/internal/models"
	"regtrack/internal/service"
)

func (h *Handler) ListRisks(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var f service.RiskFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		h.badRequest(c, err)
		return
	}
	risks, err := h.svc.ListRisks(c.Request.Context(), tc, f)
	h.respond(c, http.StatusOK, risks, err)
}

func (h *Handler) CreateRisk(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.RiskInput
	if !h.bind(c, &in) {
		return
	}
	r, err := h.svc.CreateRisk(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, r, err)
}

func (h *Handler) GetRisk(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	riskID, ok := h.id(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.GetRisk(c.Request.Context(), tc, riskID)
	h.respond(c, http.StatusOK, view, err)
}

func (h *Handler) UpdateRiskAssessment(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	riskID, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in struct {
		Probability int `json:"probability"`
		Impact      int `json:"impact"`
	}
	if !h.bind(c, &in) {
		return
	}
	r, err := h.svc.UpdateRiskAssessment(c.Request.Context(), tc, riskID, in.Probability, in.Impact)
	h.respond(c, http.StatusOK, r, err)
}

func (h *Handler) SetRiskStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	riskID, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in statusBody[models.RiskStatus]
	if !h.bind(c, &in) {
		return
	}
	r, err := h.svc.SetRiskStatus(c.Request.Context(), tc, riskID, in.Status)
	h.respond(c, http.StatusOK, r, err)
}

func (h *Handler) ResidualRisk(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	riskID, ok := h.id(c, "id")
	if !ok {
		return
	}
	residual, err := h.svc.ResidualRisk(c.Request.Context(), tc, riskID)
	h.respond(c, http.StatusOK, gin.H{"risk_id": riskID, "residual": residual}, err)
}

func (h *Handler) LinkControl(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	riskID, ok := h.id(c, "id")
	if !ok {
		return
	}
	controlID, ok := h.id(c, "control_id")
	if !ok {
		return
	}
	link, err := h.svc.LinkControl(c.Request.Context(), tc, riskID, controlID)
	h.respond(c, http.StatusCreated, link, err)
}

func (h *Handler) UnlinkControl(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	riskID, ok := h.id(c, "id")
	if !ok {
		return
	}
	controlID, ok := h.id(c, "control_id")
	if !ok {
		return
	}
	if err := h.svc.UnlinkControl(c.Request.Context(), tc, riskID, controlID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListControls(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	controls, err := h.svc.ListControls(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, controls, err)
}

func (h *Handler) CreateControl(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.ControlInput
	if !h.bind(c, &in) {
		return
	}
	ctl, err := h.svc.CreateControl(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, ctl, err)
}

// SetControlEffectiveness records a test result; a null score marks the
// control untested again.
func (h *Handler) SetControlEffectiveness(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	controlID, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in struct {
		Score *int `json:"score"`
	}
	if !h.bind(c, &in) {
		return
	}
	var (
		ctl *models.Control
		err error
	)
	if in.Score == nil {
		ctl, err = h.svc.MarkControlUntested(c.Request.Context(), tc, controlID)
	} else {
		ctl, err = h.svc.SetControlEffectiveness(c.Request.Context(), tc, controlID, *in.Score)
	}
	h.respond(c, http.StatusOK, ctl, err)
}
