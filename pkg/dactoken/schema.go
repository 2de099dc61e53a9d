package dactoken

import (
	"encoding/json"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/schema"
)

// validateTokenResponse validates raw against tokenResponseSchema and
// decodes it into token. A parse failure here is the InvalidTokenResponse
// disposition.
func validateTokenResponse(raw json.RawMessage, token *Token) error {
	parsed, err := schema.ValidateOne[Token](tokenResponseSchema, raw)
	if err != nil {
		return err
	}
	*token = parsed
	return nil
}
