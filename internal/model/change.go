package model

import "fmt"

// ChangeType tags a native bookmark change.
type ChangeType int

const (
	ChangeAdd ChangeType = iota + 1
	ChangeRemove
	ChangeMove
	ChangeModify
)

// String returns the lower-case name of the change type.
func (t ChangeType) String() string {
	switch t {
	case ChangeAdd:
		return "add"
	case ChangeRemove:
		return "remove"
	case ChangeMove:
		return "move"
	case ChangeModify:
		return "modify"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseChangeType maps a change name back to its ChangeType. Unknown names map
// to the zero value, which every consumer rejects as ambiguous.
func ParseChangeType(s string) ChangeType {
	switch s {
	case "add", "create":
		return ChangeAdd
	case "remove":
		return ChangeRemove
	case "move":
		return ChangeMove
	case "modify", "update":
		return ChangeModify
	default:
		return 0
	}
}

// NativeEvent is a raw notification from the native bookmark API, carrying
// the arguments the browser supplied with it.
//
//   - Add: NativeID and Node (the created node).
//   - Remove: NativeID, ParentID and Index (former position) and Node.
//   - Move: NativeID, ParentID and Index (new position), OldParentID and OldIndex.
//   - Modify: NativeID and Node (changed title/url).
type NativeEvent struct {
	Type        ChangeType
	NativeID    string
	Node        *NativeNode
	ParentID    string
	Index       int
	OldParentID string
	OldIndex    int
}

// BookmarkChange is a normalized native change ready to be replayed against
// the synced tree. The concrete types are AddChange, RemoveChange, MoveChange
// and ModifyChange.
type BookmarkChange interface {
	Type() ChangeType
	// NodeID is the native id of the changed node.
	NodeID() string
}

// AddChange records a node created natively. Description and Tags are set
// when the node was enriched from the active page.
type AddChange struct {
	Node        *NativeNode
	Description string
	Tags        []string
}

// RemoveChange records a node removed natively from ParentID at Index.
type RemoveChange struct {
	NativeID string
	ParentID string
	Index    int
	Node     *NativeNode
}

// MoveChange records a node moved natively.
type MoveChange struct {
	NativeID    string
	ParentID    string
	Index       int
	OldParentID string
	OldIndex    int
}

// ModifyChange records a natively edited node.
type ModifyChange struct {
	Node *NativeNode
}

func (AddChange) Type() ChangeType    { return ChangeAdd }
func (RemoveChange) Type() ChangeType { return ChangeRemove }
func (MoveChange) Type() ChangeType   { return ChangeMove }
func (ModifyChange) Type() ChangeType { return ChangeModify }

func (c AddChange) NodeID() string    { return c.Node.ID }
func (c RemoveChange) NodeID() string { return c.NativeID }
func (c MoveChange) NodeID() string   { return c.NativeID }
func (c ModifyChange) NodeID() string { return c.Node.ID }
