package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mr "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain/medical_record"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/middleware"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/service"
)

const formFilesKey = "files"

type MedicalRecordHandler struct {
	ingestion *service.IngestionService
	records   *service.MedicalRecordService
	policy    service.SelectionPolicy
	// abortOnDisconnect lets a client disconnect cancel an in-flight submit.
	abortOnDisconnect bool
	log               *zap.Logger
}

func NewMedicalRecordHandler(
	ingestion *service.IngestionService,
	records *service.MedicalRecordService,
	policy service.SelectionPolicy,
	abortOnDisconnect bool,
	log *zap.Logger,
) *MedicalRecordHandler {
	return &MedicalRecordHandler{
		ingestion:         ingestion,
		records:           records,
		policy:            policy,
		abortOnDisconnect: abortOnDisconnect,
		log:               log,
	}
}

// RegisterRoutes mounts the record routes. Create is deliberately not behind
// requireIdentity: the submission pipeline validates the draft first and then
// asks the identity provider itself.
func (h *MedicalRecordHandler) RegisterRoutes(rg *gin.RouterGroup, requireIdentity gin.HandlerFunc) {
	patients := rg.Group("/patients/:patient_id/records")
	patients.POST("", h.Create)
	patients.POST("/preview", requireIdentity, h.Preview)
	patients.GET("", requireIdentity, h.List)

	rg.GET("/records/:id", requireIdentity, h.Get)
}

func (h *MedicalRecordHandler) Create(c *gin.Context) {
	session, ok := h.sessionFromForm(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if !h.abortOnDisconnect {
		ctx = context.WithoutCancel(ctx)
	}

	out, err := session.Submit(ctx)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("X-Submission-ID", out.SubmissionID)
	if !out.Succeeded() {
		respondOutcome(c, out)
		return
	}
	respondCreated(c, out.Record, out.Message)
}

func (h *MedicalRecordHandler) Preview(c *gin.Context) {
	session, ok := h.sessionFromForm(c)
	if !ok {
		return
	}
	defer session.Cancel()

	previews, err := session.Preview()
	if err != nil {
		h.log.Warn("preview failed", zap.Error(err))
		respondError(c, http.StatusBadRequest, "could not read the selected files")
		return
	}
	respondOK(c, previews)
}

func (h *MedicalRecordHandler) List(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	q := &mr.ListRecordsQuery{
		PatientID: c.Param("patient_id"),
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
	}

	page, err := h.records.ListRecords(c.Request.Context(), q, identity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, page)
}

func (h *MedicalRecordHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	identity, _ := middleware.IdentityFrom(c)

	record, err := h.records.GetRecord(c.Request.Context(), id, identity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, record)
}

// sessionFromForm builds a submission session from the request form. Files
// are checked against the selection policy here, before anything is sent.
func (h *MedicalRecordHandler) sessionFromForm(c *gin.Context) (*service.SubmissionSession, bool) {
	if limit := h.maxBodyBytes(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		respondError(c, http.StatusBadRequest, "invalid form: "+err.Error())
		return nil, false
	}

	session := h.ingestion.NewSession(c.Param("patient_id"), h.policy)
	for _, f := range mr.Fields {
		if err := session.SetField(string(f), c.PostForm(string(f))); err != nil {
			respondServiceError(c, err)
			return nil, false
		}
	}

	if form != nil && len(form.File[formFilesKey]) > 0 {
		headers := form.File[formFilesKey]
		files := make([]mr.LocalFile, 0, len(headers))
		for _, fh := range headers {
			f, err := newMultipartFile(fh)
			if err != nil {
				h.log.Warn("unreadable upload part", zap.String("file", fh.Filename), zap.Error(err))
				respondError(c, http.StatusBadRequest, "could not read "+fh.Filename)
				return nil, false
			}
			files = append(files, f)
		}
		if err := session.SelectFiles(files...); err != nil {
			respondServiceError(c, err)
			return nil, false
		}
	}

	return session, true
}

func (h *MedicalRecordHandler) maxBodyBytes() int64 {
	if h.policy.MaxFileBytes <= 0 || h.policy.MaxFiles <= 0 {
		return 0
	}
	return int64(h.policy.MaxFiles)*h.policy.MaxFileBytes + 1<<20
}
