package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"regtrack/internal/models"
	"regtrack/internal/service"
)

// ====== INCIDENTS ======

func (h *Handler) ListIncidents(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListIncidents(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) ReportIncident(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.IncidentInput
	if !h.bind(c, &in) {
		return
	}
	inc, err := h.svc.ReportIncident(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, inc, err)
}

func (h *Handler) AdvanceIncident(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in statusBody[models.IncidentStatus]
	if !h.bind(c, &in) {
		return
	}
	inc, err := h.svc.AdvanceIncident(c.Request.Context(), tc, id, in.Status)
	h.respond(c, http.StatusOK, inc, err)
}

// ====== VENDORS ======

func (h *Handler) ListVendors(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListVendors(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) CreateVendor(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.VendorInput
	if !h.bind(c, &in) {
		return
	}
	v, err := h.svc.CreateVendor(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, v, err)
}

func (h *Handler) SetVendorStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in statusBody[models.VendorStatus]
	if !h.bind(c, &in) {
		return
	}
	v, err := h.svc.SetVendorStatus(c.Request.Context(), tc, id, in.Status)
	h.respond(c, http.StatusOK, v, err)
}

// ====== LOSS EVENTS ======

func (h *Handler) ListLossEvents(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListLossEvents(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) RecordLossEvent(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.LossEventInput
	if !h.bind(c, &in) {
		return
	}
	ev, err := h.svc.RecordLossEvent(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, ev, err)
}

func (h *Handler) SetLossEventStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in statusBody[models.LossEventStatus]
	if !h.bind(c, &in) {
		return
	}
	ev, err := h.svc.SetLossEventStatus(c.Request.Context(), tc, id, in.Status)
	h.respond(c, http.StatusOK, ev, err)
}

// ====== PEN TESTS & SCANS ======

func (h *Handler) ListPenTests(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListPenTests(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) RecordPenTest(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.PenTestInput
	if !h.bind(c, &in) {
		return
	}
	pt, err := h.svc.RecordPenTest(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, pt, err)
}

func (h *Handler) SetPenTestStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in struct {
		Status   models.PenTestStatus  `json:"status" binding:"required"`
		Findings *models.FindingCounts `json:"findings,omitempty"`
	}
	if !h.bind(c, &in) {
		return
	}
	pt, err := h.svc.SetPenTestStatus(c.Request.Context(), tc, id, in.Status, in.Findings)
	h.respond(c, http.StatusOK, pt, err)
}

func (h *Handler) ListVulnScans(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListVulnScans(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) RecordVulnScan(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.VulnScanInput
	if !h.bind(c, &in) {
		return
	}
	scan, err := h.svc.RecordVulnScan(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, scan, err)
}

// ====== DOCUMENTS ======

func (h *Handler) ListDocuments(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListDocuments(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) CreateDocument(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.DocumentInput
	if !h.bind(c, &in) {
		return
	}
	doc, err := h.svc.CreateDocument(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, doc, err)
}

func (h *Handler) SetDocumentStatus(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in statusBody[models.DocumentStatus]
	if !h.bind(c, &in) {
		return
	}
	doc, err := h.svc.SetDocumentStatus(c.Request.Context(), tc, id, in.Status)
	h.respond(c, http.StatusOK, doc, err)
}

// ====== KRIs ======

func (h *Handler) ListKRIs(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListKRIs(c.Request.Context(), tc)
	h.respond(c, http.StatusOK, rows, err)
}

func (h *Handler) CreateKRI(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	var in service.KRIInput
	if !h.bind(c, &in) {
		return
	}
	k, err := h.svc.CreateKRI(c.Request.Context(), tc, in)
	h.respond(c, http.StatusCreated, k, err)
}

func (h *Handler) RecordKRIValue(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.id(c, "id")
	if !ok {
		return
	}
	var in struct {
		Value *float64 `json:"value" binding:"required"`
	}
	if !h.bind(c, &in) {
		return
	}
	k, err := h.svc.RecordKRIValue(c.Request.Context(), tc, id, *in.Value)
	h.respond(c, http.StatusOK, k, err)
}

// ====== NOTIFICATIONS ======

func (h *Handler) ListNotifications(c *gin.Context) {
	tc, ok := h.tenant(c)
	if !ok {
		return
	}
	limit, ok := h.limit(c, 50)
	if !ok {
		return
	}
	rows, err := h.svc.ListNotifications(c.Request.Context(), tc, limit)
	h.respond(c, http.StatusOK, rows, err)
}
