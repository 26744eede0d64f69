package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/waypost/waypost/internal/assets/appidentity"
)

func init() {
	// Register the embedded identity so a bare waypost binary resolves its
	// name and env prefix without a `.fulmen/app.yaml` on disk. Explicit
	// overrides (Options.ExplicitPath, FULMEN_APP_IDENTITY_PATH) still win.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get resolves the app identity through gofulmen's normal lookup chain with
// the embedded copy as last resort.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}
