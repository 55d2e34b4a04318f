package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"contest-engine/internal/app"
	"contest-engine/internal/domain"
)

// Handler wires the contest engine use cases to the REST surface.
type Handler struct {
	service *app.ContestService
}

func NewHandler(service *app.ContestService) *Handler {
	return &Handler{service: service}
}

type contestRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

type choiceRequest struct {
	Value     string `json:"value"`
	IsCorrect bool   `json:"isCorrect"`
}

type questionRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	IsMultiple     bool            `json:"isMultiple"`
	Points         int             `json:"points"`
	MaxTimeSeconds int             `json:"maxTimeSeconds"`
	Choices        []choiceRequest `json:"choices"`
}

type answerRequest struct {
	QuestionID       string   `json:"questionId"`
	ChoiceIDs        []string `json:"choiceIds"`
	TimeTakenSeconds int      `json:"timeTakenSeconds"`
}

func (h *Handler) ListContests(c *gin.Context) {
	status := domain.ContestStatus(c.Query("status"))
	limit := intQuery(c, "limit", 20)
	contests, err := h.service.ListContests(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contests": contests})
}

func (h *Handler) GetContest(c *gin.Context) {
	contest, err := h.service.GetContest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contest": contest})
}

func (h *Handler) CreateContest(c *gin.Context) {
	principal, _ := principalFrom(c)
	var req contestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("invalid contest payload"))
		return
	}
	contest, err := h.service.CreateContest(c.Request.Context(), principal.ID, app.ContestInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"contest": contest})
}

func (h *Handler) UpdateContest(c *gin.Context) {
	var req contestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("invalid contest payload"))
		return
	}
	contest, err := h.service.UpdateContest(c.Request.Context(), c.Param("id"), app.ContestInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contest": contest})
}

func (h *Handler) Join(c *gin.Context) {
	principal, _ := principalFrom(c)
	contestID := c.Param("id")
	if err := h.service.Join(c.Request.Context(), contestID, principal.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contestId": contestID, "userId": principal.ID})
}

func (h *Handler) Questions(c *gin.Context) {
	principal, _ := principalFrom(c)
	questions, err := h.service.Questions(c.Request.Context(), c.Param("id"), principal.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (h *Handler) Submit(c *gin.Context) {
	principal, _ := principalFrom(c)
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("invalid answer payload"))
		return
	}
	result, err := h.service.Submit(c.Request.Context(), c.Param("id"), principal.ID, domain.AnswerSubmission{
		QuestionID:       req.QuestionID,
		ChoiceIDs:        req.ChoiceIDs,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Progress(c *gin.Context) {
	principal, _ := principalFrom(c)
	progress, err := h.service.Progress(c.Request.Context(), c.Param("id"), principal.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	lb, err := h.service.Leaderboard(c.Request.Context(), c.Param("id"), intQuery(c, "limit", 10), intQuery(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": lb.Source, "entries": lb.Entries})
}

// adminChoice exposes the correct flag, which the participant-facing
// serialization deliberately drops.
type adminChoice struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	IsCorrect bool   `json:"isCorrect"`
}

type adminQuestion struct {
	domain.Question
	Choices []adminChoice `json:"choices"`
}

func toAdminQuestion(q domain.Question) adminQuestion {
	out := adminQuestion{Question: q, Choices: make([]adminChoice, 0, len(q.Choices))}
	for _, c := range q.Choices {
		out.Choices = append(out.Choices, adminChoice{ID: c.ID, Value: c.Value, IsCorrect: c.IsCorrect})
	}
	return out
}

func (h *Handler) ManageQuestions(c *gin.Context) {
	questions, err := h.service.ManageQuestions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]adminQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, toAdminQuestion(q))
	}
	c.JSON(http.StatusOK, gin.H{"questions": out})
}

func (h *Handler) AddQuestion(c *gin.Context) {
	principal, _ := principalFrom(c)
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("invalid question payload"))
		return
	}
	question, err := h.service.AddQuestion(c.Request.Context(), c.Param("id"), principal.ID, toQuestionInput(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"question": toAdminQuestion(question)})
}

func (h *Handler) UpdateQuestion(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("invalid question payload"))
		return
	}
	if _, err := h.service.UpdateQuestion(c.Request.Context(), c.Param("id"), toQuestionInput(req)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *Handler) DeleteQuestion(c *gin.Context) {
	if err := h.service.DeleteQuestion(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) ImportQuestions(c *gin.Context) {
	principal, _ := principalFrom(c)
	var req struct {
		Questions []questionRequest `json:"questions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("invalid import payload"))
		return
	}
	inputs := make([]app.QuestionInput, 0, len(req.Questions))
	for _, q := range req.Questions {
		inputs = append(inputs, toQuestionInput(q))
	}
	imported, err := h.service.ImportQuestions(c.Request.Context(), c.Param("id"), principal.ID, inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

func (h *Handler) AttachQuestions(c *gin.Context) {
	principal, _ := principalFrom(c)
	var req struct {
		QuestionIDs []string `json:"questionIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("invalid attach payload"))
		return
	}
	added, err := h.service.AttachQuestions(c.Request.Context(), c.Param("id"), principal.ID, req.QuestionIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func toQuestionInput(req questionRequest) app.QuestionInput {
	in := app.QuestionInput{
		Title:          req.Title,
		Description:    req.Description,
		IsMultiple:     req.IsMultiple,
		Points:         req.Points,
		MaxTimeSeconds: req.MaxTimeSeconds,
	}
	for _, c := range req.Choices {
		in.Choices = append(in.Choices, app.ChoiceInput{Value: c.Value, IsCorrect: c.IsCorrect})
	}
	return in
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
