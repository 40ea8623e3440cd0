package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trustid/trustid/internal/credential"
	"github.com/trustid/trustid/internal/identity"
	"github.com/trustid/trustid/internal/ledger"
	"github.com/trustid/trustid/internal/logging"
	"github.com/trustid/trustid/internal/mnemonic"
	"github.com/trustid/trustid/internal/notification"
	"github.com/trustid/trustid/internal/recovery"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type inbox struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (i *inbox) Send(_ context.Context, msg notification.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.messages = append(i.messages, msg)
	return nil
}

func (i *inbox) last(t *testing.T) notification.Message {
	t.Helper()
	i.mu.Lock()
	defer i.mu.Unlock()
	require.NotEmpty(t, i.messages)
	return i.messages[len(i.messages)-1]
}

type fixture struct {
	svc         *Service
	identities  *identity.Service
	credentials *credential.Service
	tokens      *ledger.Service
	inbox       *inbox
}

func newFixture(t *testing.T, revocations RevocationList) fixture {
	t.Helper()
	box := &inbox{}
	creds, err := credential.NewService(credential.NewMemoryRepository(), credential.NewMemoryTicketStore(), box, logging.Discard(),
		credential.Options{BcryptCost: bcrypt.MinCost, TicketTTL: time.Minute})
	require.NoError(t, err)
	tokens := ledger.NewService(ledger.NewInMemory(), logging.Discard())
	ids := identity.NewService(identity.NewMemoryRepository(), tokens, mnemonic.NewGenerator(), creds, logging.Discard())
	if revocations == nil {
		revocations = NewMemoryRevocationList()
	}
	svc := NewService(ids, creds, NewSigner(testSecret, "trustid-test"), revocations, logging.Discard(),
		Options{SessionTTL: time.Hour, GrantTTL: 10 * time.Minute})
	return fixture{svc: svc, identities: ids, credentials: creds, tokens: tokens, inbox: box}
}

func (f fixture) individual(t *testing.T, email, password string) identity.Identity {
	t.Helper()
	created, err := f.identities.Create(context.Background(), identity.CreateInput{
		Contact:  identity.IndividualContact{Email: email, Name: "Meera"},
		Password: password,
	})
	require.NoError(t, err)
	return created
}

func (f fixture) institution(t *testing.T, name, branch, password string) identity.Identity {
	t.Helper()
	ctx := context.Background()
	_, err := f.tokens.Provision(ctx, "MGR-"+branch)
	require.NoError(t, err)
	created, err := f.identities.Create(ctx, identity.CreateInput{
		Contact:   identity.InstitutionContact{InstitutionName: name, BranchName: branch, IFSCCode: "HDFC0001234"},
		Password:  password,
		AuthToken: "MGR-" + branch,
	})
	require.NoError(t, err)
	return created
}

func TestLoginIssuesSessionBoundToIdentity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := f.individual(t, "a@x.com", "correct-horse")

	session, err := f.svc.Login(ctx, identity.KindIndividual, "A@x.com ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, session.IdentityID)
	assert.NotEmpty(t, session.Token)

	claims, err := f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.Subject)
	assert.Equal(t, string(identity.KindIndividual), claims.Kind)
	assert.Equal(t, ScopeSession, claims.Scope)
	assert.NotEmpty(t, claims.ID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.individual(t, "a@x.com", "correct-horse")

	_, wrongPassword := f.svc.Login(ctx, identity.KindIndividual, "a@x.com", "battery-staple")
	_, unknownAccount := f.svc.Login(ctx, identity.KindIndividual, "ghost@x.com", "correct-horse")
	_, wrongKind := f.svc.Login(ctx, identity.KindInstitution, "a@x.com", "correct-horse")

	for _, err := range []error{wrongPassword, unknownAccount, wrongKind} {
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, ErrInvalidCredentials.Error(), err.Error())
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.individual(t, "a@x.com", "correct-horse")
	session, err := f.svc.Login(ctx, identity.KindIndividual, "a@x.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, session.Token))
	_, err = f.svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, f.svc.Logout(ctx, session.Token), ErrInvalidToken)
}

func TestAuthenticateRejectsForeignAndExpiredTokens(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := f.individual(t, "a@x.com", "correct-horse")

	other := NewSigner("another-secret-another-secret-xx", "trustid-test")
	forged, _, err := other.Sign(created.ID, "individual", ScopeSession, time.Now(), time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	stale, _, err := f.svc.signer.Sign(created.ID, "individual", ScopeSession, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	recoveryScoped, _, err := f.svc.signer.Sign(created.ID, "individual", ScopeRecovery, time.Now(), time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, recoveryScoped)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGrantSendsResetTicketToIndividuals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := f.individual(t, "a@x.com", "correct-horse")

	grant, err := f.svc.Grant(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, recovery.ActionResetTicketSent, grant.Action)
	assert.Empty(t, grant.RecoveryToken)

	msg := f.inbox.last(t)
	assert.Equal(t, notification.KindPasswordReset, msg.Kind)
	assert.Equal(t, "a@x.com", msg.Destination)

	require.NoError(t, f.svc.CompleteTicketReset(ctx, msg.Body, "brand-new-pass"))
	_, err = f.svc.Login(ctx, identity.KindIndividual, "a@x.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, identity.KindIndividual, "a@x.com", "brand-new-pass")
	require.NoError(t, err)
}

func TestGrantIssuesSingleUseRecoveryTokenToInstitutions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created := f.institution(t, "Axis Bank", "Pune", "vault-pass-1")

	grant, err := f.svc.Grant(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, recovery.ActionRecoveryToken, grant.Action)
	require.NotEmpty(t, grant.RecoveryToken)
	require.NotNil(t, grant.ExpiresAt)

	_, err = f.svc.Authenticate(ctx, grant.RecoveryToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "recovery tokens are not sessions")

	assert.ErrorIs(t, f.svc.CompleteRecoveryReset(ctx, grant.RecoveryToken, "short"), credential.ErrWeakPassword)
	require.NoError(t, f.svc.CompleteRecoveryReset(ctx, grant.RecoveryToken, "vault-pass-2"))
	assert.ErrorIs(t, f.svc.CompleteRecoveryReset(ctx, grant.RecoveryToken, "vault-pass-3"), ErrInvalidToken)

	session, err := f.svc.Login(ctx, identity.KindInstitution, identity.InstitutionKey("Axis Bank", "Pune"), "vault-pass-2")
	require.NoError(t, err)
	assert.Equal(t, created.ID, session.IdentityID)
}

func TestRedisRevocationList(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	list := NewRedisRevocationList(client)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "sid-1", time.Minute))
	revoked, err = list.IsRevoked(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "sid-2", 0))
	assert.False(t, mr.Exists(revokedSessionPrefix+"sid-2"))
}

func TestLogoutWithRedisRevocations(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, NewRedisRevocationList(client))
	ctx := context.Background()
	f.individual(t, "a@x.com", "correct-horse")

	session, err := f.svc.Login(ctx, identity.KindIndividual, "a@x.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, session.Token))
	_, err = f.svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
