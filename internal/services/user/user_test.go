package user

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := Open(Options{
		DataDir:       t.TempDir(),
		NodeFanout:    4,
		BlockCapacity: 4,
		CacheK:        2,
		CacheCapacity: 16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestAddUserBootstrapsFirstUser(t *testing.T) {
	svc := openTestService(t)

	err := svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3)
	require.NoError(t, err)

	require.NoError(t, svc.Login("root", "r00t"))
	err = svc.Login("root", "r00t")
	require.Error(t, err, "second login must fail")
}

func TestAddUserRequiresSession(t *testing.T) {
	svc := openTestService(t)
	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.NoError(t, svc.Login("root", "r00t"))

	err := svc.AddUser("nobody", "alice", "pw", "Alice", "a@x", 5)
	require.Error(t, err, "unlogged-in cur must be rejected")
}

func TestAddUserPrivilegeMustExceedGranted(t *testing.T) {
	svc := openTestService(t)
	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.NoError(t, svc.Login("root", "r00t"))

	err := svc.AddUser("root", "alice", "pw", "Alice", "a@x", 10)
	require.Error(t, err, "root (privilege 10) cannot grant privilege 10")

	require.NoError(t, svc.AddUser("root", "alice", "pw", "Alice", "a@x", 5))
}

func TestAddUserRejectsDuplicateUsername(t *testing.T) {
	svc := openTestService(t)
	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.NoError(t, svc.Login("root", "r00t"))
	require.NoError(t, svc.AddUser("root", "alice", "pw", "Alice", "a@x", 5))

	err := svc.AddUser("root", "alice", "pw2", "Alice2", "a2@x", 5)
	require.Error(t, err)
}

func TestLogoutRequiresLoggedIn(t *testing.T) {
	svc := openTestService(t)
	require.Error(t, svc.Logout("nobody"))

	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.NoError(t, svc.Login("root", "r00t"))
	require.NoError(t, svc.Logout("root"))
	require.Error(t, svc.Logout("root"), "double logout must fail")
}

func TestQueryProfileACL(t *testing.T) {
	svc := openTestService(t)
	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.NoError(t, svc.Login("root", "r00t"))
	require.NoError(t, svc.AddUser("root", "alice", "pw", "Alice", "a@x", 5))
	require.NoError(t, svc.Login("alice", "pw"))

	rec, err := svc.QueryProfile("alice", "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", rec.Name)

	_, err = svc.QueryProfile("alice", "root")
	require.Error(t, err, "alice (priv 5) may not view root (priv 10)")

	rec, err = svc.QueryProfile("root", "alice")
	require.NoError(t, err, "root (priv 10) may view alice (priv 5)")
	require.Equal(t, "alice", rec.Username)
}

func TestModifyProfileUpdatesOnlySetFields(t *testing.T) {
	svc := openTestService(t)
	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.NoError(t, svc.Login("root", "r00t"))

	newName := "Root Admin"
	updated, err := svc.ModifyProfile("root", "root", ProfileUpdate{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "Root Admin", updated.Name)
	require.Equal(t, "r@x", updated.Mail, "mail must be unchanged")

	rec, err := svc.QueryProfile("root", "root")
	require.NoError(t, err)
	require.Equal(t, "Root Admin", rec.Name)
}

func TestModifyProfileRejectsSelfEscalation(t *testing.T) {
	svc := openTestService(t)
	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.NoError(t, svc.Login("root", "r00t"))
	require.NoError(t, svc.AddUser("root", "alice", "pw", "Alice", "a@x", 5))
	require.NoError(t, svc.Login("alice", "pw"))

	newPriv := int32(10)
	_, err := svc.ModifyProfile("alice", "alice", ProfileUpdate{Privilege: &newPriv})
	require.Error(t, err)
}

func TestCleanWipesLoginAndStore(t *testing.T) {
	svc := openTestService(t)
	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.NoError(t, svc.Login("root", "r00t"))

	require.NoError(t, svc.Clean())
	require.Error(t, svc.Logout("root"), "login table must be empty after clean")

	require.NoError(t, svc.AddUser("anybody", "root2", "pw", "R2", "r2@x", 1),
		"store must be empty after clean, so a fresh bootstrap user succeeds")
}

func TestDataDirIsUsed(t *testing.T) {
	dir := t.TempDir()
	svc, err := Open(Options{DataDir: dir, NodeFanout: 4, BlockCapacity: 4, CacheK: 2, CacheCapacity: 16})
	require.NoError(t, err)
	defer svc.Close()
	require.NoError(t, svc.AddUser("anybody", "root", "r00t", "Ro", "r@x", 3))
	require.FileExists(t, filepath.Join(dir, "users_user_node"))
	require.FileExists(t, filepath.Join(dir, "users_user_data"))
}
