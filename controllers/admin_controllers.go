package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/report"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type AdminController struct {
	auth    *services.AuthService
	reports *services.ReportService
	pdf     *report.PDFExporter
}

func NewAdminController(auth *services.AuthService, reports *services.ReportService, pdf *report.PDFExporter) *AdminController {
	if pdf == nil {
		pdf = report.NewPDFExporter("")
	}
	return &AdminController{auth: auth, reports: reports, pdf: pdf}
}

func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	stats, err := ac.reports.DashboardStats(c.Request.Context())
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dashboard stats", stats)
}

func (ac *AdminController) dailyReport(c *gin.Context) (*services.DailyReport, bool) {
	day, err := services.ParseReportDate(c.Query("date"), time.Now().UTC())
	if err != nil {
		utils.RespondServiceError(c, err)
		return nil, false
	}
	r, err := ac.reports.DailyReport(c.Request.Context(), day)
	if err != nil {
		utils.RespondServiceError(c, err)
		return nil, false
	}
	return r, true
}

// GetDailyReport answers ?date=YYYY-MM-DD, today when omitted.
func (ac *AdminController) GetDailyReport(c *gin.Context) {
	r, ok := ac.dailyReport(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Daily report", r)
}

func (ac *AdminController) GetDailyReportPDF(c *gin.Context) {
	r, ok := ac.dailyReport(c)
	if !ok {
		return
	}
	// render fully before writing so a failure can still become a JSON error
	var buf bytes.Buffer
	if err := ac.pdf.Write(&buf, r); err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	filename := fmt.Sprintf("report-%s.pdf", r.Date)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (ac *AdminController) CreateStaff(c *gin.Context) {
	var req services.TeamMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	staff, err := ac.auth.CreateStaff(c.Request.Context(), middlewares.CurrentIdentity(c), req)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Staff created", staff)
}

func (ac *AdminController) CreateCourier(c *gin.Context) {
	var req services.TeamMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	courier, err := ac.auth.CreateCourier(c.Request.Context(), middlewares.CurrentIdentity(c), req)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Courier created", courier)
}
