package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
)

// consentPage is the approval form shown before any upstream redirect. The
// hidden consent token ties the submission to the transaction cookie.
var consentPage = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Authorize {{.ClientName}}</title>
<style>
  body { font-family: system-ui, sans-serif; background: #f5f5f5; margin: 0; }
  .card { max-width: 26rem; margin: 4rem auto; background: #fff; border-radius: 8px;
          padding: 2rem; box-shadow: 0 1px 4px rgba(0,0,0,.15); }
  h1 { font-size: 1.2rem; margin-top: 0; }
  ul { padding-left: 1.2rem; color: #444; }
  .actions { display: flex; gap: .75rem; margin-top: 1.5rem; }
  button { flex: 1; padding: .6rem; border-radius: 6px; border: 1px solid #ccc;
           background: #fff; font-size: 1rem; cursor: pointer; }
  button.approve { background: #1a7f37; border-color: #1a7f37; color: #fff; }
</style>
</head>
<body>
<div class="card">
  <h1>{{.ClientName}} wants access to your Gravatar profile</h1>
  <p>Approving will sign you in upstream and allow this client to:</p>
  <ul>
    {{range .Scopes}}<li>{{.}}</li>{{end}}
  </ul>
  <form method="POST" action="/authorize/consent">
    <input type="hidden" name="transaction_id" value="{{.TransactionID}}">
    <input type="hidden" name="consent_token" value="{{.ConsentToken}}">
    <div class="actions">
      <button type="submit" name="consent_action" value="deny">Deny</button>
      <button type="submit" name="consent_action" value="approve" class="approve">Approve</button>
    </div>
  </form>
</div>
</body>
</html>
`))

type consentPageData struct {
	ClientName    string
	Scopes        []string
	TransactionID string
	ConsentToken  string
}

// handleAuthorize starts a downstream authorization attempt. It validates
// the client, snapshots the request into a fresh transaction, and renders
// the consent form. No upstream redirect happens until consent is approved.
func (a *App) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, "", "", "invalid_request", "invalid form")
		return
	}

	req := AuthorizeRequest{
		ClientID:            r.FormValue("client_id"),
		RedirectURI:         r.FormValue("redirect_uri"),
		Scope:               r.FormValue("scope"),
		State:               r.FormValue("state"),
		CodeChallenge:       r.FormValue("code_challenge"),
		CodeChallengeMethod: r.FormValue("code_challenge_method"),
	}

	client, err := a.validateAuthorizeRequest(req)
	if err != nil {
		a.Logger.Warn("authorize invalid request", "client_id", req.ClientID, "error", err)
		http.Error(w, fmt.Sprintf("invalid_request: %s", err.Error()), http.StatusBadRequest)
		return
	}

	txn, err := a.Txns.Create(w, req)
	if err != nil {
		a.Logger.Error("transaction create", "error", err)
		oauthError(w, req.RedirectURI, req.State, "server_error", "failed to start authorization")
		return
	}

	name := client.ClientName
	if name == "" {
		name = client.ClientID
	}
	scopes := a.Config.Server.ConsentScopes
	if len(scopes) == 0 {
		scopes = []string{"Read your public profile", "See your verified accounts"}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := consentPage.Execute(w, consentPageData{
		ClientName:    name,
		Scopes:        scopes,
		TransactionID: txn.ID,
		ConsentToken:  txn.ConsentToken,
	}); err != nil {
		a.Logger.Error("render consent page", "error", err)
	}
}

func (a *App) validateAuthorizeRequest(req AuthorizeRequest) (*Client, error) {
	if req.ClientID == "" {
		return nil, errors.New("client_id required")
	}
	client, ok := a.Clients.Get(req.ClientID)
	if !ok {
		return nil, errors.New("unknown client")
	}
	if req.RedirectURI == "" {
		return nil, errors.New("redirect_uri required")
	}
	if !client.ValidRedirect(req.RedirectURI) {
		return nil, errors.New("redirect_uri not registered")
	}
	return client, nil
}

// handleConsent processes the consent form. The submitted consent token must
// match the one inside the signed transaction cookie; a mismatch is rejected
// without touching the transaction so the user can retry from the real form.
func (a *App) handleConsent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	txnID := r.FormValue("transaction_id")
	txn, err := a.Txns.Load(r, txnID)
	if err != nil {
		http.Error(w, "authorization session expired or not found", http.StatusBadRequest)
		return
	}

	if r.FormValue("consent_token") != txn.ConsentToken {
		a.Logger.Warn("consent token mismatch", "transaction_id", txnID)
		http.Error(w, "consent token mismatch", http.StatusForbidden)
		return
	}

	if r.FormValue("consent_action") != "approve" {
		a.Txns.Invalidate(w, txn.ID)
		oauthError(w, txn.Request.RedirectURI, txn.Request.State,
			"access_denied", "User denied the request")
		return
	}

	// Approval keeps the cookie alive; the callback needs the transaction
	// to finish the flow.
	http.Redirect(w, r, a.Upstream.AuthCodeURL(txn), http.StatusFound)
}
