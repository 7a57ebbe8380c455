package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/maceip/acdp/pkg/arc"
	"github.com/maceip/acdp/pkg/counterstore"
	"github.com/maceip/acdp/pkg/credential"
	"github.com/maceip/acdp/pkg/crypto"
	"github.com/maceip/acdp/pkg/identity"
	"github.com/maceip/acdp/pkg/metrics"
)

const maxCASRetries = 3

// Verifier runs the ordered verification pipeline: signature, expiry,
// revocation, tool authorization, ARC proof (anonymous/hybrid only), tag
// replay (anonymous/hybrid only), counter commit, result assembly.
//
// A credential moves Issued -> Active on first successful verification,
// stays Active while Used < Max, becomes Exhausted when Used reaches Max,
// and Expired once ExpiresAt passes regardless of Active/Exhausted state.
// Revoked is reachable from any state and is terminal.
type Verifier struct {
	gatewayPublicKey []byte
	arcKey           *arc.ServerKeyPair
	store            counterstore.Store
}

// New builds a Verifier. gatewayPublicKey authenticates credential
// signatures; arcKey is the gateway's ARC issuer keypair used to verify
// anonymous/hybrid presentations; store tracks presentation counters and
// ARC tag replay.
func New(gatewayPublicKey []byte, arcKey *arc.ServerKeyPair, store counterstore.Store) *Verifier {
	return &Verifier{gatewayPublicKey: gatewayPublicKey, arcKey: arcKey, store: store}
}

// Verify runs the full pipeline against req and always returns a Result —
// rejections are reported via Result.FailureReason rather than an error, so
// a server can log Result directly without a type switch.
func (v *Verifier) Verify(ctx context.Context, req *Request) *Result {
	start := time.Now()
	label, result := v.verify(ctx, req)
	metrics.ObserveVerifyResult(label, time.Since(start).Seconds())
	return result
}

func (v *Verifier) verify(ctx context.Context, req *Request) (string, *Result) {
	cred := req.Credential

	// 1. Signature.
	if err := cred.VerifySignature(v.gatewayPublicKey); err != nil {
		return "invalid_signature", failure(fmt.Sprintf("signature verification failed: %v", err))
	}

	// 2. Expiration.
	if cred.IsExpired(time.Now()) {
		return "expired", failure("credential expired")
	}

	// 3. Revocation and counter load.
	rec, err := v.store.Get(ctx, cred.CredentialID)
	if err != nil {
		if err == counterstore.ErrNotFound {
			return "not_found", failure("credential not found")
		}
		return "store_error", failure(fmt.Sprintf("counter lookup failed: %v", err))
	}
	if rec.Revoked {
		return "revoked", failure("credential revoked")
	}
	if rec.Exhausted() {
		return "rate_limit_exceeded", failure(fmt.Sprintf("rate limit exceeded: used=%d max=%d", rec.Used, rec.Max))
	}

	// 4. Tool authorization.
	if err := cred.Capabilities.IsToolAllowed(req.Context.Tool); err != nil {
		return "tool_not_allowed", failure(fmt.Sprintf("tool not allowed: %v", err))
	}

	// 5 & 6 only apply to variants backed by an ARC credential; identity-bound
	// credentials rely on the server-side counter alone.
	if cred.Variant == credential.VariantAnonymous || cred.Variant == credential.VariantHybrid {
		if req.ARCPresentation == nil {
			return "missing_arc_presentation", failure(ErrMissingARCPresentation.Error())
		}

		windowTag := []byte(cred.EpochBinding)
		if err := v.arcKey.Verify(req.ARCPresentation, windowTag); err != nil {
			return "arc_invalid", failure(fmt.Sprintf("ARC proof invalid: %v", err))
		}

		tagBytes := crypto.MarshalPoint(req.ARCPresentation.M1Tag)
		replayed, err := v.store.ObservedTag(ctx, cred.CredentialID, req.Context.ServerID, tagBytes, req.ARCPresentation.PresentationNonce, cred.Capabilities.Window)
		if err != nil {
			return "store_error", failure(fmt.Sprintf("tag replay check failed: %v", err))
		}
		if replayed {
			return "tag_replayed", failure("presentation tag replayed")
		}
	}

	// 7. Counter commit, bounded retry on CAS conflict.
	var used uint64
	for attempt := 0; ; attempt++ {
		used, err = v.store.CASIncrement(ctx, cred.CredentialID)
		if err == nil {
			break
		}
		if err == counterstore.ErrRevoked {
			return "revoked", failure("credential revoked")
		}
		if err == counterstore.ErrCounterExhausted {
			return "rate_limit_exceeded", failure("rate limit exceeded")
		}
		if err != counterstore.ErrCASConflict || attempt >= maxCASRetries-1 {
			return "store_error", failure(fmt.Sprintf("counter commit failed: %v", err))
		}
	}

	// 8. Assemble the result. Only identity-bound credentials disclose the
	// principal, agent id, and delegation audit trail to the tool provider.
	var agentID string
	var chain []string
	var principal *identity.Principal
	if cred.Variant == credential.VariantIdentityBound {
		principal = cred.Principal
		if cred.Agent != nil {
			agentID = cred.Agent.AgentID
		}
		chain = cred.Delegation.AuditTrail()
	}

	return "success", success(principal, agentID, rec.Max-used, chain)
}
