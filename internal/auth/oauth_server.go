package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/go-oauth2/oauth2/v4"
	oauth2errors "github.com/go-oauth2/oauth2/v4/errors"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/go-oauth2/oauth2/v4/server"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// OAuthService issues access tokens to registered machine clients through the client_credentials grant
type OAuthService struct {
	server *server.Server
	db     *gorm.DB
}

func NewOAuthService(db *gorm.DB, jwtSecret string, tokenTTL time.Duration) *OAuthService {
	manager := manage.NewDefaultManager()
	manager.SetClientTokenCfg(&manage.Config{AccessTokenExp: tokenTTL})

	// Access tokens are JWTs carrying the uid and role claims the API middleware expects
	manager.MapAccessGenerate(NewCustomJWTAccessGenerate([]byte(jwtSecret), jwt.SigningMethodHS256, db))

	// Configure token store
	tokenStore := NewGormTokenStore(db)
	manager.MustTokenStorage(tokenStore, nil)

	// Configure client store
	clientStore := NewGormClientStore(db)
	manager.MapClientStorage(clientStore)

	o := &OAuthService{db: db}

	srv := server.NewDefaultServer(manager)
	srv.SetAllowedGrantType(oauth2.ClientCredentials)
	srv.SetClientInfoHandler(server.ClientFormHandler)
	srv.SetClientAuthorizedHandler(o.clientAuthorized)
	srv.SetInternalErrorHandler(func(err error) (re *oauth2errors.Response) {
		log.WithError(err).Error("OAuth2 internal error")
		return nil
	})
	srv.SetResponseErrorHandler(func(re *oauth2errors.Response) {
		log.WithFields(logrus.Fields{
			"error":       re.Error,
			"status_code": re.StatusCode,
		}).Warn("OAuth2 token request rejected")
	})

	o.server = srv
	return o
}

func (o *OAuthService) GetServer() *server.Server {
	return o.server
}

// HandleToken issues an access token for the client credentials grant
// @Summary Token Endpoint
// @Description Obtain an access token using the client credentials grant
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "Grant type: client_credentials"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string true "Client Secret"
// @Param scope formData string false "Requested scope"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.OAuth2Error
// @Router /api/oauth/token [post]
func (o *OAuthService) HandleToken(c *gin.Context) {
	if err := o.server.HandleTokenRequest(c.Writer, c.Request); err != nil {
		log.WithError(err).Error("Failed to write token response")
	}
}

// clientAuthorized restricts a client to the grant types it was registered with
func (o *OAuthService) clientAuthorized(clientID string, grant oauth2.GrantType) (bool, error) {
	var client models.OAuthClient
	if err := o.db.WithContext(context.Background()).Select("id", "grant_types").Where("id = ?", clientID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, oauth2errors.ErrInvalidClient
		}
		return false, err
	}

	if client.GrantTypes == "" {
		return true, nil
	}
	for _, allowed := range strings.FieldsFunc(client.GrantTypes, func(r rune) bool { return r == ',' || r == ' ' }) {
		if allowed == grant.String() {
			return true, nil
		}
	}
	return false, nil
}
