package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soothill/powerlogger/internal/topology"
)

// TokenProvisioner mints the writer and reader credentials. Tokens are not
// reconciled resources: every call creates a new credential, and earlier
// ones stay valid until revoked by hand.
type TokenProvisioner struct {
	api    AdminAPI
	label  string
	runID  string
	logger *slog.Logger
}

// NewTokenProvisioner creates a provisioner. label prefixes the credential
// descriptions; runID, when set, is appended so each credential can be
// traced to the run that minted it.
func NewTokenProvisioner(api AdminAPI, label, runID string, logger *slog.Logger) *TokenProvisioner {
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenProvisioner{api: api, label: label, runID: runID, logger: logger}
}

// IssueWriterToken mints a credential that may only write to the raw bucket.
func (p *TokenProvisioner) IssueWriterToken(ctx context.Context, rawBucketID string) (topology.AccessToken, error) {
	if rawBucketID == "" {
		return topology.AccessToken{}, fmt.Errorf("%w: raw bucket id is unresolved", ErrPrecondition)
	}

	return p.issue(ctx, topology.TokenWriter, topology.WriterPermissions(rawBucketID))
}

// IssueReaderToken mints a credential that may only read the four buckets.
func (p *TokenProvisioner) IssueReaderToken(
	ctx context.Context, bucketIDs [topology.TierCount]string,
) (topology.AccessToken, error) {
	for i, id := range bucketIDs {
		if id == "" {
			return topology.AccessToken{}, fmt.Errorf("%w: %s bucket id is unresolved", ErrPrecondition, topology.Tier(i))
		}
	}

	return p.issue(ctx, topology.TokenReader, topology.ReaderPermissions(bucketIDs))
}

func (p *TokenProvisioner) issue(
	ctx context.Context, kind topology.TokenKind, perms []topology.Permission,
) (topology.AccessToken, error) {
	desc := p.description(kind)

	tok, err := p.api.CreateAuthorization(ctx, desc, perms)
	if err != nil {
		return topology.AccessToken{}, fmt.Errorf("creating %s credential: %w", kind, err)
	}

	tok.Kind = kind
	if tok.Description == "" {
		tok.Description = desc
	}

	if tok.Secret == "" {
		// The credential exists remotely; hand back its id so it can be revoked.
		return tok, fmt.Errorf("%w: %s credential %s", ErrMissingSecret, kind, tok.ID)
	}

	p.logger.Info("credential issued", slog.Any("token", tok))

	return tok, nil
}

func (p *TokenProvisioner) description(kind topology.TokenKind) string {
	var scope string

	switch kind {
	case topology.TokenWriter:
		scope = "write raw"
	case topology.TokenReader:
		scope = "read all tiers"
	default:
		scope = string(kind)
	}

	desc := fmt.Sprintf("%s %s token (%s)", p.label, kind, scope)
	if p.runID != "" {
		desc += " run " + p.runID
	}

	return desc
}
