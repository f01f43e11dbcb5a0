package driven

import "context"

// Installer hands a downloaded APK to whatever performs the actual install.
// A nil error means the install was started, not that it finished.
type Installer interface {
	Install(ctx context.Context, apkPath string) error
}
