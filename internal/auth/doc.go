// Package auth provides bearer-token authentication for the HTTP API.
//
// # Tokens
//
// JWTVerifier issues and verifies HS256 tokens. The "sub" claim names the
// caller and the issuer is fixed to "socrates-gateway". Tokens are minted
// by the "token" command of the gateway binary.
//
// # Middleware
//
// HTTPAuthMiddleware rejects requests without a valid token with a JSON 401
// and stores the subject in the request context:
//
//	subject, ok := auth.SubjectFromContext(r.Context())
package auth
