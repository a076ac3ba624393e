package main

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/core/api"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/pairing"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/storage"
	"github.com/rightsgod-hub/openclaw-deploy/pkg/supervisor"
)

const defaultListenAddr = ":8787"

var errInvalidListenAddr = errors.New("listen_addr must be host:port or :port")

// ServiceConfig is the top-level admind configuration, loaded from a JSON
// file or the environment.
type ServiceConfig struct {
	ListenAddr string `json:"listen_addr"`

	// AdminToken protects every admin route. Empty leaves the API closed:
	// requests get 401 until a token is configured.
	AdminToken string `json:"admin_token"`

	// ProcessLogDir receives stdout/stderr of spawned processes.
	ProcessLogDir string `json:"process_log_dir"`

	Credentials models.R2Credentials `json:"credentials"`
	Storage     storage.Config       `json:"storage"`
	Gateway     supervisor.Config    `json:"gateway"`
	Pairing     pairing.Config       `json:"pairing"`
	Logging     *logger.Config       `json:"logging"`
}

// Validate normalizes the config and fills credential fields from the
// conventional R2_* environment variables when the file leaves them blank.
func (c *ServiceConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if !strings.Contains(c.ListenAddr, ":") {
		return errInvalidListenAddr
	}

	if c.ProcessLogDir == "" {
		c.ProcessLogDir = os.TempDir()
	}

	if c.AdminToken == "" {
		c.AdminToken = os.Getenv("OPENCLAW_ADMIN_TOKEN")
	}

	if c.Credentials.AccessKeyID == "" {
		c.Credentials.AccessKeyID = os.Getenv("R2_ACCESS_KEY_ID")
	}

	if c.Credentials.SecretAccessKey == "" {
		c.Credentials.SecretAccessKey = os.Getenv("R2_SECRET_ACCESS_KEY")
	}

	if c.Credentials.AccountID == "" {
		c.Credentials.AccountID = os.Getenv("R2_ACCOUNT_ID")
	}

	return nil
}

// bearerAuth builds the authorization pre-check from a shared token. A nil
// return keeps the API closed via the server's missing-auth path.
func bearerAuth(token string) api.AuthFunc {
	if token == "" {
		return nil
	}

	return func(r *http.Request) error {
		presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return errors.New("invalid bearer token")
		}

		return nil
	}
}
