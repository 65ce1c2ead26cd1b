//go:build !windows

package tokenbroker

// SystemTokens has no implementation off Windows.
func SystemTokens() Tokens {
	return nil
}

// DialPipe is nil off Windows; Broker reports the platform as unsupported.
var DialPipe Dialer
