package gateway

import (
	"encoding/json"
	"fmt"
)

// writesDisabledResult explains why a mutating tool was not executed.
// The advisory travels as regular (non-error) content so clients surface
// it to the model instead of treating the call as a failure and retrying.
func writesDisabledResult(tool string) json.RawMessage {
	return marshalToolResult(fmt.Sprintf(
		"Tool %q modifies Titan data, and this gateway is running in read-only mode. "+
			"Set TITAN_MCP_ENABLE_WRITES=true to allow mutating tools.", tool))
}
