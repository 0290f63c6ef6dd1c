package domain

// DeviceToken is the wire shape served by the device-token directory.
// AccountID/TableID are set only for client tokens and restrict fan-out to
// the table the anonymous client is seated at.
type DeviceToken struct {
	Token     string `json:"token"`
	Role      Role   `json:"role"`
	Lang      string `json:"lang"`
	Active    bool   `json:"active"`
	AccountID uint64 `json:"accountId,omitempty"`
	TableID   uint64 `json:"tableId,omitempty"`
}
