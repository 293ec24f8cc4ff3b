package server

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

// handleCallback receives the upstream redirect. The state parameter is the
// transaction id; the downstream client's own state is restored from the
// transaction when redirecting back. The transaction cookie is cleared
// before the code exchange so a replayed callback always fails.
func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid callback", http.StatusBadRequest)
		return
	}

	state := r.FormValue("state")
	if state == "" {
		http.Error(w, "missing state parameter", http.StatusBadRequest)
		return
	}

	txn, err := a.Txns.Load(r, state)
	if err != nil {
		http.Error(w, "authorization session expired or not found", http.StatusBadRequest)
		return
	}
	a.Txns.Invalidate(w, txn.ID)

	if errCode := r.FormValue("error"); errCode != "" {
		oauthError(w, txn.Request.RedirectURI, txn.Request.State,
			errCode, r.FormValue("error_description"))
		return
	}

	code := r.FormValue("code")
	if code == "" {
		http.Error(w, "missing code parameter", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	set, err := a.Upstream.Exchange(ctx, code, txn.Verifier)
	if err != nil {
		var uerr *UpstreamError
		if errors.As(err, &uerr) {
			a.Logger.Warn("upstream exchange rejected", "error", uerr.Code)
			http.Error(w, "token exchange failed: "+uerr.Code, http.StatusBadRequest)
			return
		}
		a.Logger.Error("upstream exchange failed", "error", err)
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	// Identity is mandatory here. There is no cached fallback on the
	// initial exchange; the refresh path is the lenient one.
	identity, err := a.Upstream.FetchIdentity(ctx, set.AccessToken)
	if err != nil {
		a.Logger.Error("identity fetch failed", "error", err)
		http.Error(w, "failed to fetch user identity", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	grant := Grant{
		ID:        NewID(),
		ClientID:  txn.Request.ClientID,
		Subject:   identity.Subject,
		Scope:     txn.Request.Scope,
		Identity:  identity,
		TokenSet:  set,
		CreatedAt: now,
	}
	a.Store.PutGrant(grant)

	downstreamCode := AuthorizationCode{
		Code:                NewID(),
		GrantID:             grant.ID,
		ClientID:            txn.Request.ClientID,
		RedirectURI:         txn.Request.RedirectURI,
		Scope:               txn.Request.Scope,
		State:               txn.Request.State,
		CodeChallenge:       txn.Request.CodeChallenge,
		CodeChallengeMethod: txn.Request.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(DefaultCodeTTL),
	}
	a.Store.PutCode(downstreamCode)

	redirect, err := url.Parse(txn.Request.RedirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	q := redirect.Query()
	q.Set("code", downstreamCode.Code)
	if txn.Request.State != "" {
		q.Set("state", txn.Request.State)
	}
	redirect.RawQuery = q.Encode()

	a.Logger.Info("authorization complete",
		"client_id", grant.ClientID, "subject", grant.Subject)
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}
