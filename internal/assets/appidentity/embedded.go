package appidentityassets

import _ "embed"

// YAML mirrors `.fulmen/app.yaml` into the binary so waypost resolves its
// identity without a checkout. Kept in sync by `make sync-embedded-identity`.
//
//go:embed app.yaml
var YAML []byte
