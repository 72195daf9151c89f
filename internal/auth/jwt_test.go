package auth_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicez/internal/auth"
	"musicez/internal/handlers/render"
	"musicez/internal/testutil"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestVerifier_Verify(t *testing.T) {
	v, err := auth.NewVerifier(testutil.TestJWTSecret)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name      string
		token     string
		wantID    string
		connected bool
		wantErr   bool
	}{
		{
			name:      "connected user",
			token:     testutil.BearerToken(t, "user-1", true),
			wantID:    "user-1",
			connected: true,
		},
		{
			name:   "unconnected user",
			token:  testutil.BearerToken(t, "user-2", false),
			wantID: "user-2",
		},
		{
			name:    "wrong secret",
			token:   sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u", "exp": future}),
			wantErr: true,
		},
		{
			name:    "expired",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testutil.TestJWTSecret), jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Minute).Unix()}),
			wantErr: true,
		},
		{
			name:    "no expiry",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testutil.TestJWTSecret), jwt.MapClaims{"sub": "u"}),
			wantErr: true,
		},
		{
			name:    "no subject",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testutil.TestJWTSecret), jwt.MapClaims{"exp": future}),
			wantErr: true,
		},
		{
			name:    "other algorithm",
			token:   sign(t, jwt.SigningMethodHS512, []byte(testutil.TestJWTSecret), jwt.MapClaims{"sub": "u", "exp": future}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not.a.token",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Verify(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrInvalidToken)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID)
			assert.Equal(t, tt.connected, p.ProviderConnected)
		})
	}
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := auth.NewVerifier("")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v, err := auth.NewVerifier(testutil.TestJWTSecret)
	require.NoError(t, err)

	newRouter := func() *gin.Engine {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		whoami := func(c *gin.Context) {
			p := auth.PrincipalFrom(c)
			if p == nil {
				c.JSON(http.StatusOK, gin.H{"id": ""})
				return
			}
			c.JSON(http.StatusOK, gin.H{"id": p.ID})
		}
		router.GET("/optional", v.Optional(), whoami)
		router.GET("/required", v.Required(), whoami)
		return router
	}

	t.Run("optional without token is anonymous", func(t *testing.T) {
		helper := testutil.NewHTTPTestHelper(t)
		helper.SetRouter(newRouter())

		var body map[string]string
		helper.AssertJSONResponse(helper.GetJSON("/optional"), http.StatusOK, &body)
		assert.Equal(t, "", body["id"])
	})

	t.Run("optional with token attaches principal", func(t *testing.T) {
		helper := testutil.NewHTTPTestHelper(t)
		helper.SetRouter(newRouter())
		helper.WithBearer(testutil.BearerToken(t, "user-1", true))

		var body map[string]string
		helper.AssertJSONResponse(helper.GetJSON("/optional"), http.StatusOK, &body)
		assert.Equal(t, "user-1", body["id"])
	})

	t.Run("optional with bad token is rejected", func(t *testing.T) {
		helper := testutil.NewHTTPTestHelper(t)
		helper.SetRouter(newRouter())
		helper.WithBearer("bogus")

		helper.AssertErrorResponse(helper.GetJSON("/optional"), http.StatusUnauthorized, render.CodeUnauthorized)
	})

	t.Run("required without token", func(t *testing.T) {
		helper := testutil.NewHTTPTestHelper(t)
		helper.SetRouter(newRouter())

		helper.AssertErrorResponse(helper.GetJSON("/required"), http.StatusUnauthorized, render.CodeUnauthorized)
	})

	t.Run("required with token", func(t *testing.T) {
		helper := testutil.NewHTTPTestHelper(t)
		helper.SetRouter(newRouter())
		helper.WithBearer(testutil.BearerToken(t, "user-9", false))

		var body map[string]string
		helper.AssertJSONResponse(helper.GetJSON("/required"), http.StatusOK, &body)
		assert.Equal(t, "user-9", body["id"])
	})
}
