package formatting

import (
	"encoding/json"
	"fmt"
)

// PrettyJSON formats any value as indented JSON for human-readable display.
// It falls back to fmt's %v form when v cannot be marshaled.
//
// Example:
//
//	fmt.Println(formatting.PrettyJSON(smart.Endpoints{AuthorizeURL: "a", TokenURL: "t"}))
//	// Output:
//	// {
//	//   "authorize": "a",
//	//   "token": "t"
//	// }
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
