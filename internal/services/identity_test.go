package rewards

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glkeru/loyalty/rewards/internal/config"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Одновременное первое обращение дает один внутренний ID
func TestResolveExternalUserConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ids := make([]string, 10)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := env.identity.ResolveExternalUser(ctx, testBrand, "ext-42")
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			ids[i] = user.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		require.NotEmpty(t, id)
		require.Equal(t, ids[0], id)
	}

	found, err := env.identity.FindExternalUser(ctx, testBrand, "ext-42")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, ids[0], found.ID)

	missing, err := env.identity.FindExternalUser(ctx, testBrand, "ext-43")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = env.identity.ResolveExternalUser(ctx, testBrand, "  ")
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestIntegrationIssueAndRedeem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auth := model.IntegrationAuth{BrandID: testBrand, APIKeyID: uuid.New()}

	balance, err := env.identity.IntegrationBalance(ctx, auth, "shopper")
	require.NoError(t, err)
	require.True(t, balance.IsZero())
	user, err := env.identity.FindExternalUser(ctx, testBrand, "shopper")
	require.NoError(t, err)
	require.Nil(t, user)

	issued, err := env.identity.IssueToExternalUser(ctx, auth, IntegrationIssueRequest{
		ExternalUserID: "shopper",
		Amount:         dec(75),
		Metadata:       model.Metadata{"order": "A-1", "source": "spoofed"},
	})
	require.NoError(t, err)
	require.Equal(t, model.ReasonIntegrationIssue, issued.Entry.Reason)
	require.Equal(t, SourceAPIIntegration, issued.Entry.Metadata["source"])
	require.Equal(t, "shopper", issued.Entry.Metadata["externalUserId"])
	require.Equal(t, auth.APIKeyID.String(), issued.Entry.Metadata["apiKeyId"])
	require.Equal(t, "A-1", issued.Entry.Metadata["order"])
	require.Equal(t, issued.User.ID, issued.Entry.UserID)

	balance, err = env.identity.IntegrationBalance(ctx, auth, "shopper")
	require.NoError(t, err)
	require.True(t, balance.Equal(dec(75)))

	red, err := env.identity.RedeemForExternalUser(ctx, auth, IntegrationRedeemRequest{ExternalUserID: "shopper", PointsUsed: dec(25), CampaignID: "c1"})
	require.NoError(t, err)
	require.Equal(t, model.RedemptionCompleted, red.Status)
	require.Equal(t, issued.User.ID, red.UserID)

	balance, err = env.identity.IntegrationBalance(ctx, auth, "shopper")
	require.NoError(t, err)
	require.True(t, balance.Equal(dec(50)))
}

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, raw, err := env.keys.CreateKey(ctx, testBrand, "pos")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, APIKeyPrefix))
	require.Equal(t, HashAPIKey(raw), key.KeyHash)
	require.True(t, key.IsActive)

	_, _, err = env.keys.CreateKey(ctx, "missing", "pos")
	require.ErrorIs(t, err, model.ErrNotFound)
	_, _, err = env.keys.CreateKey(ctx, testBrand, "")
	require.ErrorIs(t, err, model.ErrValidation)

	auth, err := env.keys.Verify(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, testBrand, auth.BrandID)
	require.Equal(t, key.ID, auth.APIKeyID)

	_, err = env.keys.Verify(ctx, "rk_unknown")
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = env.keys.Verify(ctx, "not-a-key")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	// приостановленный бренд
	require.NoError(t, env.keys.SetBrandStatus(ctx, testBrand, true, true))
	_, err = env.keys.Verify(ctx, raw)
	require.ErrorIs(t, err, model.ErrForbidden)
	require.NoError(t, env.keys.SetBrandStatus(ctx, testBrand, false, false))
	_, err = env.keys.Verify(ctx, raw)
	require.ErrorIs(t, err, model.ErrForbidden)
	require.NoError(t, env.keys.SetBrandStatus(ctx, testBrand, true, false))

	// отключенный ключ
	require.NoError(t, env.keys.DisableKey(ctx, testBrand, key.ID))
	_, err = env.keys.Verify(ctx, raw)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	require.ErrorIs(t, env.keys.DisableKey(ctx, testBrand, uuid.New()), model.ErrNotFound)

	keys, err := env.keys.ListKeys(ctx, testBrand)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.False(t, keys[0].IsActive)
}

func TestJWTProvider(t *testing.T) {
	provider := NewJWTProvider("secret", "rewards")
	token, err := provider.Sign(model.Identity{UserID: "admin-1", PlatformAdmin: true}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/brands/b/points/balance/u", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	identity, err := provider.ResolveCallerIdentity(req)
	require.NoError(t, err)
	require.Equal(t, "admin-1", identity.UserID)
	require.True(t, identity.PlatformAdmin)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"garbage", "Bearer abc.def.ghi"},
		{"basic", "Basic dXNlcjpwYXNz"},
	}
	for _, ts := range tests {
		t.Run(ts.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if ts.header != "" {
				req.Header.Set("Authorization", ts.header)
			}
			_, err := provider.ResolveCallerIdentity(req)
			require.ErrorIs(t, err, model.ErrUnauthorized)
		})
	}

	other := NewJWTProvider("other-secret", "rewards")
	forged, err := other.Sign(model.Identity{UserID: "x"}, jwt.RegisteredClaims{})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	_, err = provider.ResolveCallerIdentity(req)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	expired, err := provider.Sign(model.Identity{UserID: "x"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	_, err = provider.ResolveCallerIdentity(req)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestNewIdentityProvider(t *testing.T) {
	_, err := NewIdentityProvider(config.Auth{Mode: config.AuthJWT})
	require.Error(t, err)
	_, err = NewIdentityProvider(config.Auth{Mode: "ldap"})
	require.Error(t, err)

	provider, err := NewIdentityProvider(config.Auth{Mode: config.AuthStatic, DevUserID: "dev", DevAdmin: true})
	require.NoError(t, err)
	identity, err := provider.ResolveCallerIdentity(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, model.Identity{UserID: "dev", PlatformAdmin: true}, identity)

	provider, err = NewIdentityProvider(config.Auth{Mode: config.AuthStatic, DevUserID: "dev", DevBrands: []string{"b1"}})
	require.NoError(t, err)
	identity, err = provider.ResolveCallerIdentity(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.True(t, identity.CanAccessBrand("b1"))
	require.False(t, identity.CanAccessBrand("b2"))
}

func TestJWTBrandsClaim(t *testing.T) {
	provider := NewJWTProvider("secret", "")
	token, err := provider.Sign(model.Identity{UserID: "staff", Brands: []string{"b1", "b2"}}, jwt.RegisteredClaims{})
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	identity, err := provider.ResolveCallerIdentity(req)
	require.NoError(t, err)
	require.Equal(t, []string{"b1", "b2"}, identity.Brands)
	require.False(t, identity.PlatformAdmin)
	require.False(t, identity.CanAccessBrand("b3"))
	require.True(t, model.Identity{PlatformAdmin: true}.CanAccessBrand("b3"))
}
