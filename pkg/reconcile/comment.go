package reconcile

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/ids"
)

// grantorCommentTemplate renders the fixed, human-readable comment string
// attached to every PermissionRequest. It is a small expr-lang program
// rather than a hardcoded fmt.Sprintf so the DAC id is only spelled out
// once; it is rendered once per run, before the create pass.
const grantorCommentTemplate = `"Access approved by Data Access Committee " + dacID + " via automated reconciliation"`

func renderGrantorComment(dacID ids.DacId) (string, error) {
	out, err := expr.Eval(grantorCommentTemplate, map[string]any{"dacID": string(dacID)})
	if err != nil {
		return "", fmt.Errorf("error evaluating grantor comment template: %w", err)
	}
	comment, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("grantor comment template did not produce a string")
	}
	return comment, nil
}
