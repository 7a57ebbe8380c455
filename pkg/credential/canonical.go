package credential

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/maceip/acdp/pkg/capability"
	"github.com/maceip/acdp/pkg/crypto"
)

type builder struct {
	buf []byte
}

func (b *builder) bytes(chunk []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(chunk)))
	b.buf = append(b.buf, lenBuf[:]...)
	b.buf = append(b.buf, chunk...)
}

func (b *builder) str(s string) { b.bytes([]byte(s)) }

func (b *builder) u64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	b.buf = append(b.buf, buf[:]...)
}

func (b *builder) i64(v int64) { b.u64(uint64(v)) }

func (b *builder) point(p crypto.Point) { b.bytes(crypto.MarshalPoint(p)) }

func (b *builder) capabilities(c capability.Capabilities) {
	b.str(strings.Join(c.AllowedTools, ","))
	b.str(strings.Join(c.DeniedTools, ","))
	b.u64(c.MaxPresentations)
	b.i64(int64(c.Window))
	if c.ResourceLimits == nil {
		b.u64(0)
	} else {
		b.u64(1)
		b.u64(uint64(c.ResourceLimits.MaxConcurrentTasks))
		b.u64(c.ResourceLimits.MaxTokensPerRequest)
		b.u64(uint64(c.ResourceLimits.MaxWallClockSeconds))
	}
}

func (b *builder) delegationChain(chain DelegationChain) {
	b.u64(uint64(len(chain)))
	for _, link := range chain {
		b.str(link.ParentCredentialID.String())
		b.str(link.ParentAgentID)
		b.str(link.ChildAgentID)
		b.capabilities(link.ReducedCapabilities)
		b.bytes(link.Signature)
	}
}

// CanonicalBytes deterministically serializes every field a credential's
// signature covers, in a fixed order, prefixed with the protocol version.
// The Signature field itself is never part of its own canonical bytes.
func (c *ACDPCredential) CanonicalBytes() []byte {
	b := &builder{}
	b.str(ProtocolVersion)
	b.str(c.CredentialID.String())
	b.str(string(c.Variant))
	b.str(c.Issuer)
	b.capabilities(c.Capabilities)
	b.delegationChain(c.Delegation)
	b.i64(c.IssuedAt.UTC().UnixNano())
	b.i64(c.ExpiresAt.UTC().UnixNano())

	switch c.Variant {
	case VariantIdentityBound:
		if c.Principal != nil {
			b.str(c.Principal.HumanID)
			b.str(c.Principal.IDPIssuer)
			b.str(c.Principal.IDPClientID)
		}
		if c.Agent != nil {
			b.str(c.Agent.AgentID)
			b.bytes(c.Agent.PublicKey)
			b.str(c.Agent.Platform)
			b.str(strconv.FormatBool(c.Agent.Verified))
		}
	case VariantAnonymous:
		b.str(c.EpochBinding)
		if c.Agent != nil {
			b.str(c.Agent.AgentID)
			b.bytes(c.Agent.PublicKey)
		}
		if c.ARCCred != nil {
			b.point(c.ARCCred.U)
			b.point(c.ARCCred.UPrime)
		}
		if c.ARCServerKey != nil {
			b.point(c.ARCServerKey.PubX0)
			b.point(c.ARCServerKey.PubX1)
		}
	case VariantHybrid:
		b.str(c.EpochBinding)
		if c.Agent != nil {
			b.str(c.Agent.AgentID)
			b.bytes(c.Agent.PublicKey)
		}
		if c.ARCCred != nil {
			b.point(c.ARCCred.U)
			b.point(c.ARCCred.UPrime)
		}
		if c.ARCServerKey != nil {
			b.point(c.ARCServerKey.PubX0)
			b.point(c.ARCServerKey.PubX1)
		}
		b.bytes(c.SealedIdentityBound)
	}

	return b.buf
}
