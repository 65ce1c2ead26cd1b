//go:build windows

package windows

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/psadt/psadt-client/internal/clienterr"
	"github.com/psadt/psadt-client/internal/platform"
)

var (
	advapi32         = windows.NewLazySystemDLL("advapi32.dll")
	procRegRenameKey = advapi32.NewProc("RegRenameKey")
)

var hives = map[string]registry.Key{
	"HKEY_LOCAL_MACHINE":  registry.LOCAL_MACHINE,
	"HKEY_CURRENT_USER":   registry.CURRENT_USER,
	"HKEY_CLASSES_ROOT":   registry.CLASSES_ROOT,
	"HKEY_USERS":          registry.USERS,
	"HKEY_CURRENT_CONFIG": registry.CURRENT_CONFIG,
}

// Registry reads values and renames keys through advapi32.
type Registry struct{}

func NewRegistry() *Registry {
	return &Registry{}
}

func openKey(path string, access uint32) (registry.Key, error) {
	rp, err := platform.ParseRegistryPath(path)
	if err != nil {
		return 0, clienterr.Wrap(clienterr.InvalidArguments, "The registry path is invalid.", err)
	}
	k, err := registry.OpenKey(hives[rp.Hive], rp.Subkey, access)
	if err != nil {
		return 0, clienterr.Wrap(clienterr.OperationFailed, fmt.Sprintf("Failed to open registry key [%s].", path), err)
	}
	return k, nil
}

func (r *Registry) GetString(_ context.Context, keyPath, valueName string) (string, error) {
	k, err := openKey(keyPath, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()

	value, _, err := k.GetStringValue(valueName)
	if err != nil {
		return "", clienterr.Wrap(clienterr.OperationFailed,
			fmt.Sprintf("Failed to read registry value [%s] from [%s].", valueName, keyPath), err)
	}
	return value, nil
}

func (r *Registry) RenameKey(_ context.Context, parentPath, from, to string) error {
	k, err := openKey(parentPath, registry.ALL_ACCESS)
	if err != nil {
		return err
	}
	defer k.Close()

	fromPtr, err := windows.UTF16PtrFromString(from)
	if err != nil {
		return clienterr.Wrap(clienterr.InvalidArguments, "The registry key name is invalid.", err)
	}
	toPtr, err := windows.UTF16PtrFromString(to)
	if err != nil {
		return clienterr.Wrap(clienterr.InvalidArguments, "The registry key name is invalid.", err)
	}
	if status, _, _ := procRegRenameKey.Call(uintptr(k), uintptr(unsafe.Pointer(fromPtr)), uintptr(unsafe.Pointer(toPtr))); status != 0 {
		return clienterr.Wrap(clienterr.OperationFailed,
			fmt.Sprintf("Failed to rename registry key [%s] to [%s].", from, to), windows.Errno(status))
	}
	return nil
}
