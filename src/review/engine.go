// Package review turns an admin's accept/reject decision into a committed status
// change plus best-effort Discord automation.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stake-plus/mod-review/src/logging"
	"github.com/stake-plus/mod-review/src/types"
	"go.uber.org/zap"
)

// Store is the slice of the record store the engine needs.
type Store interface {
	Get(ctx context.Context, id types.ApplicationID) (*types.Application, error)
	// CompareAndSet applies t only while the row still has status expect,
	// returning ErrStale otherwise and ErrNotFound for a missing row.
	CompareAndSet(ctx context.Context, id types.ApplicationID, expect types.Status, t types.Transition) (*types.Application, error)
}

// Notifier is the Discord side of a transition.
type Notifier interface {
	GrantRole(ctx context.Context, discordID string) (alreadyHad bool, err error)
	SendDirectMessage(ctx context.Context, discordID, title, body string, color int) error
}

// Sink receives one audit event per handled transition.
type Sink interface {
	Emit(ctx context.Context, ev types.TransitionEvent) error
}

// Recorder observes transition and automation results.
type Recorder interface {
	ObserveTransition(action types.Action, result string, elapsed time.Duration)
	ObserveAutomation(step string, ok bool)
}

var errNoNotifier = errors.New("notification client not configured")

// Config wires an Engine. Store is required.
type Config struct {
	Store       Store
	Notifier    Notifier
	Sink        Sink
	Locker      Locker
	IsSynthetic IdentityPredicate
	Messages    Messages
	// CallTimeout bounds each Discord and audit call.
	CallTimeout time.Duration
	// StoreTimeout bounds each store call; defaults to CallTimeout.
	StoreTimeout time.Duration
	// LockTimeout bounds the wait for a concurrent transition on the same id.
	LockTimeout time.Duration
	Now         func() time.Time
	Logger      *zap.Logger
	Recorder    Recorder
}

// Engine is the status transition engine.
type Engine struct {
	store        Store
	notifier     Notifier
	sink         Sink
	locker       Locker
	isSynthetic  IdentityPredicate
	msgs         Messages
	callTimeout  time.Duration
	storeTimeout time.Duration
	lockTimeout  time.Duration
	now          func() time.Time
	log          *zap.Logger
	rec          Recorder
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("review: store is required")
	}
	e := &Engine{
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		sink:         cfg.Sink,
		locker:       cfg.Locker,
		isSynthetic:  cfg.IsSynthetic,
		msgs:         cfg.Messages.withDefaults(),
		callTimeout:  cfg.CallTimeout,
		storeTimeout: cfg.StoreTimeout,
		lockTimeout:  cfg.LockTimeout,
		now:          cfg.Now,
		log:          logging.OrNop(cfg.Logger),
		rec:          cfg.Recorder,
	}
	if e.locker == nil {
		e.locker = NewKeyedMutex()
	}
	if e.isSynthetic == nil {
		e.isSynthetic = IsSyntheticIdentity
	}
	if e.callTimeout <= 0 {
		e.callTimeout = 5 * time.Second
	}
	if e.storeTimeout <= 0 {
		e.storeTimeout = e.callTimeout
	}
	if e.lockTimeout <= 0 {
		e.lockTimeout = 15 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rec == nil {
		e.rec = nopRecorder{}
	}
	return e, nil
}

// Accept moves a pending application to accepted, granting the configured role and
// DMing the applicant first. The status is committed even when automation fails.
func (e *Engine) Accept(ctx context.Context, id types.ApplicationID, reviewer string) (*Outcome, error) {
	start := time.Now()
	out, err := e.accept(ctx, id, reviewerName(reviewer))
	e.rec.ObserveTransition(types.ActionAccept, resultLabel(out), time.Since(start))
	return out, err
}

// Reject moves a pending application to rejected with reason (or the placeholder),
// DMing the applicant unless it is a synthetic identity.
func (e *Engine) Reject(ctx context.Context, id types.ApplicationID, reviewer, reason string) (*Outcome, error) {
	start := time.Now()
	out, err := e.reject(ctx, id, reviewerName(reviewer), reason)
	e.rec.ObserveTransition(types.ActionReject, resultLabel(out), time.Since(start))
	return out, err
}

func (e *Engine) accept(ctx context.Context, id types.ApplicationID, reviewer string) (*Outcome, error) {
	unlock, err := e.lock(ctx, id)
	if err != nil {
		return failed(CodeLockTimeout, err), err
	}
	defer unlock()

	app, out, err := e.load(ctx, id, types.StatusAccepted)
	if app == nil {
		return out, err
	}

	if e.isSynthetic(app.DiscordUsername, app.DiscordID) {
		out := failed(CodeTestIdentity, ErrTestIdentity)
		out.IsTestIdentity = true
		out.Status = app.Status
		e.log.Warn("refusing to accept test identity",
			zap.String("application_id", app.ID.String()),
			zap.String("discord_username", app.DiscordUsername))
		return out, ErrTestIdentity
	}

	out = &Outcome{}
	alreadyHad, err := e.grantRole(ctx, app.DiscordID)
	if err != nil {
		out.appendError(fmt.Sprintf("role assignment failed: %v - follow up manually", err))
		e.log.Warn("role grant failed",
			zap.String("application_id", app.ID.String()),
			zap.String("discord_id", app.DiscordID),
			zap.Bool("rate_limited", logging.IsRateLimit(err)),
			zap.Error(err))
	} else {
		out.RoleAssigned = true
		out.AlreadyHadRole = alreadyHad
		if !alreadyHad {
			body := render(e.msgs.AcceptBody, app.DiscordUsername, "")
			if err := e.sendDM(ctx, app.DiscordID, e.msgs.AcceptTitle, body, e.msgs.AcceptColor); err != nil {
				out.appendError(fmt.Sprintf("acceptance DM not delivered: %v", err))
			} else {
				out.DMSent = true
			}
		}
	}

	t := types.Transition{
		Status:      types.StatusAccepted,
		ReviewedBy:  reviewer,
		ReviewedAt:  e.now(),
		ReviewNotes: acceptNotes(out),
	}
	return e.commit(ctx, app, t, out)
}

func (e *Engine) reject(ctx context.Context, id types.ApplicationID, reviewer, reason string) (*Outcome, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectionReason
	}

	unlock, err := e.lock(ctx, id)
	if err != nil {
		return failed(CodeLockTimeout, err), err
	}
	defer unlock()

	app, out, err := e.load(ctx, id, types.StatusRejected)
	if app == nil {
		return out, err
	}

	out = &Outcome{}
	if e.isSynthetic(app.DiscordUsername, app.DiscordID) {
		out.IsTestIdentity = true
	} else {
		body := render(e.msgs.RejectBody, app.DiscordUsername, reason)
		if err := e.sendDM(ctx, app.DiscordID, e.msgs.RejectTitle, body, e.msgs.RejectColor); err != nil {
			out.appendError(fmt.Sprintf("rejection DM not delivered: %v", err))
		} else {
			out.DMSent = true
		}
	}

	t := types.Transition{
		Status:          types.StatusRejected,
		ReviewedBy:      reviewer,
		ReviewedAt:      e.now(),
		RejectionReason: reason,
	}
	return e.commit(ctx, app, t, out)
}

func (e *Engine) lock(ctx context.Context, id types.ApplicationID) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()
	unlock, err := e.locker.Lock(lctx, string(id))
	if err != nil {
		return nil, fmt.Errorf("application %s is busy: %w", id, err)
	}
	return unlock, nil
}

// load fetches the application and resolves the precondition checks shared by both
// transitions. A nil application means the returned outcome is final.
func (e *Engine) load(ctx context.Context, id types.ApplicationID, target types.Status) (*types.Application, *Outcome, error) {
	gctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	app, err := e.store.Get(gctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, failed(CodeNotFound, ErrNotFound), ErrNotFound
	case err != nil:
		out := failed(CodeStoreFailure, err)
		return nil, out, fmt.Errorf("%w: load %s: %v", ErrStore, id, err)
	}

	switch app.Status {
	case target:
		return nil, &Outcome{
			Success:          true,
			Committed:        true,
			AlreadyProcessed: true,
			Status:           app.Status,
		}, nil
	case types.StatusPending:
		return app, nil, nil
	default:
		out := failed(CodeConflict, ErrConflict)
		out.Status = app.Status
		return nil, out, ErrConflict
	}
}

func (e *Engine) grantRole(ctx context.Context, discordID string) (bool, error) {
	if e.notifier == nil {
		e.rec.ObserveAutomation("role", false)
		return false, errNoNotifier
	}
	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	alreadyHad, err := e.notifier.GrantRole(cctx, discordID)
	e.rec.ObserveAutomation("role", err == nil)
	return alreadyHad, err
}

func (e *Engine) sendDM(ctx context.Context, discordID, title, body string, color int) error {
	if e.notifier == nil {
		e.rec.ObserveAutomation("dm", false)
		return errNoNotifier
	}
	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	err := e.notifier.SendDirectMessage(cctx, discordID, title, body, color)
	e.rec.ObserveAutomation("dm", err == nil)
	if err != nil {
		e.log.Info("direct message not delivered", zap.String("discord_id", discordID), zap.Error(err))
	}
	return err
}

// commit writes t with a compare-and-swap on pending. It runs detached from the
// caller's cancellation: automation has already happened and must be recorded.
func (e *Engine) commit(ctx context.Context, app *types.Application, t types.Transition, out *Outcome) (*Outcome, error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.storeTimeout)
	defer cancel()

	updated, err := e.store.CompareAndSet(wctx, app.ID, types.StatusPending, t)
	if errors.Is(err, ErrStale) {
		cur, gerr := e.store.Get(wctx, app.ID)
		if gerr == nil {
			out.Status = cur.Status
			if cur.Status == t.Status {
				out.Success = true
				out.Committed = true
				out.AlreadyProcessed = true
				e.log.Info("transition lost race to another reviewer",
					zap.String("application_id", app.ID.String()),
					zap.String("status", string(cur.Status)))
				return out, nil
			}
			out.Code = CodeConflict
			out.appendError(ErrConflict.Error())
			return out, ErrConflict
		}
		err = gerr
	}
	if err != nil {
		out.Code = CodeStoreFailure
		out.appendError(fmt.Sprintf("status not saved: %v", err))
		e.log.Error("status commit failed",
			zap.String("application_id", app.ID.String()),
			zap.String("status", string(t.Status)),
			zap.Error(err))
		e.emit(ctx, app, t, out)
		return out, fmt.Errorf("%w: %v", ErrStore, err)
	}

	out.Success = true
	out.Committed = true
	out.Status = updated.Status
	e.log.Info("application reviewed",
		zap.String("application_id", app.ID.String()),
		zap.String("status", string(updated.Status)),
		zap.String("reviewer", t.ReviewedBy),
		zap.Bool("role_assigned", out.RoleAssigned),
		zap.Bool("dm_sent", out.DMSent),
		zap.Bool("test_identity", out.IsTestIdentity))
	e.emit(ctx, app, t, out)
	return out, nil
}

func (e *Engine) emit(ctx context.Context, app *types.Application, t types.Transition, out *Outcome) {
	if e.sink == nil {
		return
	}
	action := types.ActionAccept
	if t.Status == types.StatusRejected {
		action = types.ActionReject
	}
	ev := types.TransitionEvent{
		ApplicationID:   app.ID,
		DiscordID:       app.DiscordID,
		DiscordUsername: app.DiscordUsername,
		Action:          action,
		Reviewer:        t.ReviewedBy,
		RoleAssigned:    out.RoleAssigned,
		AlreadyHadRole:  out.AlreadyHadRole,
		DMSent:          out.DMSent,
		IsTestIdentity:  out.IsTestIdentity,
		Committed:       out.Committed,
		Reason:          t.RejectionReason,
		Error:           out.Error,
		At:              t.ReviewedAt,
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callTimeout)
	defer cancel()
	if err := e.sink.Emit(sctx, ev); err != nil {
		e.log.Warn("audit sink failed", zap.String("application_id", app.ID.String()), zap.Error(err))
	}
}

func acceptNotes(out *Outcome) string {
	role := "role not granted"
	switch {
	case out.AlreadyHadRole:
		role = "member already had role"
	case out.RoleAssigned:
		role = "role granted"
	}
	dm := "DM not sent"
	if out.DMSent {
		dm = "DM sent"
	}
	return role + ", " + dm
}

func reviewerName(r string) string {
	if r = strings.TrimSpace(r); r != "" {
		return r
	}
	return "unknown"
}

func resultLabel(out *Outcome) string {
	switch {
	case out == nil:
		return "error"
	case out.AlreadyProcessed:
		return "already_processed"
	case out.Code != "":
		return out.Code
	case out.Error != "":
		return "committed_degraded"
	default:
		return "committed"
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(types.Action, string, time.Duration) {}
func (nopRecorder) ObserveAutomation(string, bool)                        {}
