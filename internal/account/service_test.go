package account

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richsynapse/synapsehub-client/internal/client"
	"github.com/richsynapse/synapsehub-client/internal/credstore"
)

type fakeAPI struct {
	loginErr   error
	logoutErr  error
	currentErr error
	current    client.LoginUser
	logouts    []string
}

func (f *fakeAPI) Register(_ context.Context, req client.RegisterRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	return 5, nil
}

func (f *fakeAPI) Login(_ context.Context, account, _ string) (client.LoginUser, string, error) {
	if f.loginErr != nil {
		return client.LoginUser{}, "", f.loginErr
	}
	return client.LoginUser{ID: 5, UserName: account, UserAvatar: "a.png"}, "tok-" + account, nil
}

func (f *fakeAPI) Logout(_ context.Context, token string) error {
	f.logouts = append(f.logouts, token)
	return f.logoutErr
}

func (f *fakeAPI) CurrentUser(context.Context, string) (client.LoginUser, error) {
	return f.current, f.currentErr
}

func TestLoginPersistsSession(t *testing.T) {
	store := credstore.NewMemory()
	svc := NewService(&fakeAPI{}, store, "", nil)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", sess.Token)
	assert.Equal(t, credstore.User{ID: 5, Username: "alice", Avatar: "a.png"}, sess.User)

	cookies, err := svc.Cookies(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "satoken", cookies[0].Name)
	assert.Equal(t, "tok-alice", cookies[0].Value)
}

func TestLoginFailureLeavesStoreUntouched(t *testing.T) {
	store := credstore.NewMemory()
	svc := NewService(&fakeAPI{loginErr: errors.New("bad password")}, store, "", nil)
	_, err := svc.Login(context.Background(), "alice", "password1")
	require.Error(t, err)
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLogoutClearsEvenWhenRemoteFails(t *testing.T) {
	api := &fakeAPI{logoutErr: errors.New("backend down")}
	store := credstore.NewMemory()
	svc := NewService(api, store, "sid", nil)
	ctx := context.Background()
	_, err := svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx))
	assert.Equal(t, []string{"tok-alice"}, api.logouts)
	cookies, err := svc.Cookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cookies)

	require.NoError(t, svc.Logout(ctx), "logout while logged out is a no-op")
	assert.Len(t, api.logouts, 1)
}

func TestWhoami(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{current: client.LoginUser{ID: 5, UserName: "alice-renamed"}}
	svc := NewService(api, credstore.NewMemory(), "", nil)

	_, err := svc.Whoami(ctx, false)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	cached, err := svc.Whoami(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "alice", cached.User.Username)

	fresh, err := svc.Whoami(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", fresh.User.Username)

	cached, err = svc.Whoami(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", cached.User.Username)
}

func TestWhoamiExpiredTokenClearsSession(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{currentErr: &client.APIError{Code: client.CodeNotLogin, Message: "not logged in"}}
	store := credstore.NewMemory()
	svc := NewService(api, store, "", nil)
	_, err := svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)

	_, err = svc.Whoami(ctx, true)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegisterPassesThroughValidation(t *testing.T) {
	svc := NewService(&fakeAPI{}, credstore.NewMemory(), "", nil)
	_, err := svc.Register(context.Background(), client.RegisterRequest{UserAccount: "al", UserPassword: "password1", CheckPassword: "password1"})
	assert.ErrorIs(t, err, client.ErrAccountTooShort)
}
