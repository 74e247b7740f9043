package match

import (
	"context"

	"hexclash/server/internal/action"
	"hexclash/server/internal/pools"
	"hexclash/server/internal/scheduler"
	"hexclash/server/internal/validate"
	loggingnetwork "hexclash/server/logging/network"
)

// AccessToken is the single-use ticket exchanged with clients. A response
// with Allowed=false carries nothing else a client could act on.
type AccessToken struct {
	UserID  int64          `json:"userId"`
	Allowed bool           `json:"allowed"`
	Token   string         `json:"token,omitempty"`
	Action  *action.Action `json:"action,omitempty"`
}

// Request names used in rejection logs.
const (
	RequestToAct     = "requestToAct"
	RequestSubmit    = "submitAction"
	RequestEndTurn   = "requestEndTurn"
	RequestStateSync = "requestStateSync"
)

// RequestToAct issues a token when userID is the elected actor. Issuing a
// new token revokes any earlier one.
func (m *Match) RequestToAct(ctx context.Context, userID int64) AccessToken {
	m.mu.Lock()
	resp := m.requestToActLocked(ctx, userID)
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return resp
}

func (m *Match) requestToActLocked(ctx context.Context, userID int64) AccessToken {
	deny := AccessToken{UserID: userID}
	if m.gate == nil {
		m.rejectRequest(ctx, RequestToAct, userID, validate.Reject(validate.RejectAuthorityOnly, "mirror cannot issue tokens"))
		return deny
	}
	if _, err := validate.CheckTurn(matchView{m}, userID); err != nil {
		m.rejectRequest(ctx, RequestToAct, userID, err)
		return deny
	}
	token, err := m.issueLocked(ctx, userID)
	if err != nil {
		m.cfg.Logger.Printf("match %s: issue token for %d: %v", m.cfg.ID, userID, err)
		return deny
	}
	m.transition(ctx, eventAct)
	return AccessToken{UserID: userID, Allowed: true, Token: token}
}

func (m *Match) issueLocked(ctx context.Context, userID int64) (string, error) {
	token, err := m.gate.Issue(userID, m.turn)
	if err != nil {
		return "", err
	}
	if claims, ok := m.gate.Current(); ok {
		loggingnetwork.TokenIssued(ctx, m.cfg.Publisher, m.turn, m.entityRef(userID), loggingnetwork.TokenPayload{
			TokenID: claims.JWTID,
			Turn:    claims.Turn,
			Seq:     claims.Seq,
		}, nil)
	}
	return token, nil
}

// SubmitAction verifies tok and commits its action. The token is consumed;
// when the actor keeps enough readiness to continue the response carries a
// fresh token, otherwise the turn ends and Allowed is false. The committed
// action is echoed in its replay form either way. Rejections return
// Allowed=false with no action and change nothing.
func (m *Match) SubmitAction(ctx context.Context, tok AccessToken) AccessToken {
	m.mu.Lock()
	resp := m.submitLocked(ctx, tok)
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return resp
}

func (m *Match) submitLocked(ctx context.Context, tok AccessToken) AccessToken {
	userID := tok.UserID
	deny := AccessToken{UserID: userID}
	if err := m.verifyLocked(tok); err != nil {
		m.rejectRequest(ctx, RequestSubmit, userID, err)
		return deny
	}
	if tok.Action == nil {
		m.rejectRequest(ctx, RequestSubmit, userID, validate.Reject(validate.RejectMalformed, "no action"))
		return deny
	}
	if err := m.rules.Check(matchView{m}, userID, *tok.Action); err != nil {
		m.rejectRequest(ctx, RequestSubmit, userID, err)
		return deny
	}

	m.gate.Consume()
	outcome, err := m.commitLocked(ctx, userID, *tok.Action)
	if err != nil {
		m.cfg.Logger.Printf("match %s: commit for %d failed after validation: %v", m.cfg.ID, userID, err)
		if m.actor == userID {
			m.endTurnLocked(ctx, EndExhausted, false)
		}
		return deny
	}
	m.actions++

	committed := outcome.Action
	resp := AccessToken{UserID: userID, Action: &committed}
	if m.actor != userID {
		return resp
	}
	if c, ok := m.arena[userID]; ok && !m.over && scheduler.Continues(c.Get(pools.Posture)) {
		token, err := m.issueLocked(ctx, userID)
		if err == nil {
			resp.Allowed = true
			resp.Token = token
			return resp
		}
		m.cfg.Logger.Printf("match %s: rotate token for %d: %v", m.cfg.ID, userID, err)
	}
	m.endTurnLocked(ctx, EndExhausted, false)
	return resp
}

// RequestEndTurn ends the caller's turn after the same base checks as
// SubmitAction.
func (m *Match) RequestEndTurn(ctx context.Context, tok AccessToken) bool {
	m.mu.Lock()
	ok := false
	if err := m.verifyLocked(tok); err != nil {
		m.rejectRequest(ctx, RequestEndTurn, tok.UserID, err)
	} else {
		m.endTurnLocked(ctx, EndRequested, true)
		ok = true
	}
	pending := m.takePending()
	m.mu.Unlock()
	m.flush(pending)
	return ok
}

// RequestStateSync returns a full snapshot.
func (m *Match) RequestStateSync() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// verifyLocked runs the base checks: participant, turn and token.
func (m *Match) verifyLocked(tok AccessToken) error {
	if m.gate == nil {
		return validate.Reject(validate.RejectAuthorityOnly, "mirror cannot verify tokens")
	}
	if _, err := validate.CheckTurn(matchView{m}, tok.UserID); err != nil {
		return err
	}
	if _, err := m.gate.Verify(tok.Token, tok.UserID, m.turn); err != nil {
		return err
	}
	return nil
}

// rejectRequest logs why a request was refused. The reason never reaches
// the caller.
func (m *Match) rejectRequest(ctx context.Context, request string, userID int64, err error) {
	reason := validate.ReasonOf(err)
	loggingnetwork.RequestRejected(ctx, m.cfg.Publisher, m.turn, m.entityRef(userID), loggingnetwork.RejectedPayload{
		Request: request,
		Reason:  string(reason),
		Detail:  err.Error(),
	}, nil)
	m.cfg.Logger.Printf("match %s: %s from %d rejected: %v", m.cfg.ID, request, userID, err)
}
