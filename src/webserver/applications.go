package webserver

import (
	"crypto/subtle"
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/store"
	"github.com/stake-plus/mod-review/src/types"
)

const (
	intakeHeader    = "X-Intake-Token"
	maxReasonLength = 1000
)

type Applications struct {
	store       store.Repository
	engine      Reviewer
	intakeToken []byte
	policy      *bluemonday.Policy
	log         *zap.Logger
}

func NewApplications(st store.Repository, engine Reviewer, intakeToken string, log *zap.Logger) Applications {
	return Applications{
		store:       st,
		engine:      engine,
		intakeToken: []byte(intakeToken),
		policy:      bluemonday.StrictPolicy(),
		log:         log,
	}
}

// plainText strips markup and leaves readable text for Discord and JSON.
func (a Applications) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(a.policy.Sanitize(s)))
}

func (a Applications) Intake(c *gin.Context) {
	got := []byte(c.GetHeader(intakeHeader))
	if len(a.intakeToken) == 0 || subtle.ConstantTimeCompare(got, a.intakeToken) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "invalid intake token"})
		return
	}

	var sub types.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	sub.DiscordID = strings.TrimSpace(sub.DiscordID)
	sub.DiscordUsername = a.plainText(sub.DiscordUsername)
	sub.ConversationLog = a.plainText(sub.ConversationLog)
	sub.Answers = a.plainText(sub.Answers)
	if sub.DiscordID == "" || sub.DiscordUsername == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "discord_id and discord_username are required"})
		return
	}
	if _, err := strconv.ParseUint(sub.DiscordID, 10, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid Discord user ID"})
		return
	}

	app, err := a.store.Insert(c.Request.Context(), sub)
	if err != nil {
		a.log.Error("intake insert failed", zap.String("discord_id", sub.DiscordID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"err": "failed to store application"})
		return
	}
	a.log.Info("application submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("discord_id", app.DiscordID),
		zap.Int("score", app.Score))
	c.JSON(http.StatusCreated, app)
}

func (a Applications) List(c *gin.Context) {
	var f types.ListFilter
	if s := c.Query("status"); s != "" {
		f.Status = types.Status(strings.ToLower(s))
		if !f.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"err": "status must be pending, accepted or rejected"})
			return
		}
	}
	var err error
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	apps, err := a.store.List(c.Request.Context(), f)
	if err != nil {
		a.log.Error("list applications failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"err": "failed to load applications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps, "count": len(apps)})
}

func (a Applications) Get(c *gin.Context) {
	app, err := a.store.Get(c.Request.Context(), types.ApplicationID(c.Param("id")))
	switch {
	case errors.Is(err, review.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": "application not found"})
	case err != nil:
		a.log.Error("get application failed", zap.String("application_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"err": "failed to load application"})
	default:
		c.JSON(http.StatusOK, app)
	}
}

func (a Applications) Stats(c *gin.Context) {
	counts, err := a.store.Counts(c.Request.Context())
	if err != nil {
		a.log.Error("count applications failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"err": "failed to load stats"})
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"pending":  counts[types.StatusPending],
		"accepted": counts[types.StatusAccepted],
		"rejected": counts[types.StatusRejected],
		"total":    total,
	})
}

// Accept and Reject answer 200 with the outcome for every handled case; the outcome's
// success and code fields carry the result.
func (a Applications) Accept(c *gin.Context) {
	out, err := a.engine.Accept(c.Request.Context(), types.ApplicationID(c.Param("id")), c.GetString(ctxReviewer))
	a.respond(c, types.ActionAccept, out, err)
}

func (a Applications) Reject(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
			return
		}
	}
	reason := a.plainText(req.Reason)
	if len([]rune(reason)) > maxReasonLength {
		c.JSON(http.StatusBadRequest, gin.H{"err": "reason is too long"})
		return
	}
	out, err := a.engine.Reject(c.Request.Context(), types.ApplicationID(c.Param("id")), c.GetString(ctxReviewer), reason)
	a.respond(c, types.ActionReject, out, err)
}

func (a Applications) respond(c *gin.Context, action types.Action, out *review.Outcome, err error) {
	if out == nil {
		a.log.Error("transition returned no outcome", zap.String("action", string(action)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
		return
	}
	if err != nil {
		a.log.Info("transition not applied",
			zap.String("action", string(action)),
			zap.String("application_id", c.Param("id")),
			zap.String("code", out.Code),
			zap.Error(err))
	}
	c.JSON(http.StatusOK, out)
}

func queryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}
