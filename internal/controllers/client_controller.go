package controllers

import (
	"net/http"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

type ClientController struct {
	clientService services.ClientService
}

func NewClientController(clientService services.ClientService) *ClientController {
	return &ClientController{clientService: clientService}
}

// ClientCreatedResponse returns the plain secret; it is never shown again
type ClientCreatedResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Name         string `json:"name"`
	Domain       string `json:"domain"`
	Scopes       string `json:"scopes"`
	GrantTypes   string `json:"grant_types"`
}

// CreateClient godoc
// @Summary Create OAuth2 client
// @Description Create a new OAuth2 client for the client_credentials grant, acting on behalf of the caller
// @Tags OAuth2 Clients
// @Accept json
// @Produce json
// @Param client body services.ClientInput true "Client details"
// @Success 201 {object} ClientCreatedResponse "Client created with client_id and client_secret"
// @Failure 400 {object} models.APIError "Invalid request"
// @Failure 500 {object} models.APIError "Client creation failed"
// @Security BearerAuth
// @Router /api/admin/clients [post]
func (cc *ClientController) CreateClient(c *gin.Context) {
	var req services.ClientInput
	if !bindJSON(c, &req) {
		return
	}

	client, secret, err := cc.clientService.CreateClient(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ClientCreatedResponse{
		ClientID:     client.ID,
		ClientSecret: secret,
		Name:         client.Name,
		Domain:       client.Domain,
		Scopes:       client.Scopes,
		GrantTypes:   client.GrantTypes,
	})
}

// ListClients godoc
// @Summary List OAuth2 clients
// @Description Get all OAuth2 clients owned by the authenticated user
// @Tags OAuth2 Clients
// @Produce json
// @Success 200 {array} models.OAuthClient "List of clients"
// @Failure 500 {object} models.APIError "Failed to retrieve clients"
// @Security BearerAuth
// @Router /api/admin/clients [get]
func (cc *ClientController) ListClients(c *gin.Context) {
	clients, err := cc.clientService.GetClientsByUserID(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, clients)
}

// DeleteClient godoc
// @Summary Delete OAuth2 client
// @Description Delete an OAuth2 client owned by the authenticated user
// @Tags OAuth2 Clients
// @Param id path string true "Client ID"
// @Success 204 "Client deleted successfully"
// @Failure 404 {object} models.APIError "Client not found"
// @Security BearerAuth
// @Router /api/admin/clients/{id} [delete]
func (cc *ClientController) DeleteClient(c *gin.Context) {
	if err := cc.clientService.DeleteClient(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
