package mirror

import (
	"errors"

	"github.com/kalambet/devsettings/internal/radio"
)

var (
	ErrUnknownSetting      = errors.New("unknown setting")
	ErrInvalidValue        = errors.New("invalid value")
	ErrControlDisabled     = errors.New("control disabled")
	ErrProtocolUnavailable = errors.New("radio protocol unavailable")
	ErrNoSimSlot           = radio.ErrNoSlot
	ErrAlreadyRestored     = errors.New("boot restore already ran for this boot")
)

// User-facing messages passed to the Notifier.
const (
	MsgRadioUnavailable  = "5G mode cannot be changed: the radio service is not connected"
	MsgNoSimSlot         = "5G mode cannot be changed: no SIM slot carries mobile data"
	MsgSELinuxEnforcing  = "SELinux mode restored to enforcing"
	MsgSELinuxPermissive = "SELinux mode restored to permissive"
	MsgCannotGetSu       = "Cannot get su: SELinux mode not restored"
)
