// Package windows provides the native platform services on top of user32,
// shell32, the registry and the Win32 token APIs. It registers itself with
// platform.NewProviderFunc when imported on Windows.
package windows
