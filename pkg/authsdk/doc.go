// Package authsdk is a typed Go client for the gatehouse authentication
// service. It mirrors the HTTP surface one method per endpoint:
//
//	client := authsdk.NewClient("http://localhost:8080")
//
//	// Accounts without a second factor get a session straight away.
//	session, pending, err := client.Login(ctx, "alice@example.com", password)
//
//	// Accounts with two-factor enabled get a pending challenge instead.
//	if pending != nil {
//		session, err = client.VerifyTFA(ctx, pending.PreTFAToken, code)
//	}
//
//	me, err := session.Me(ctx)
//
// Failed requests return *APIError carrying the server's error code and
// HTTP status, so callers can branch with errors.As.
package authsdk
