package Access

import (
	"context"
	"testing"
	"time"

	"FalconFreight/Models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCapabilityTable(t *testing.T) {
	admin := Identity{UserID: 1, Role: Models.RoleAdmin}
	dispatcher := Identity{UserID: 2, Role: Models.RoleDispatcher}
	driver := Identity{UserID: 3, Role: Models.RoleDriver}

	cases := []struct {
		op      Operation
		allowed []Identity
		denied  []Identity
	}{
		{CreateTrip, []Identity{admin, dispatcher}, []Identity{driver}},
		{DeleteTrip, []Identity{admin, dispatcher}, []Identity{driver}},
		{TakeTrip, []Identity{admin, driver}, []Identity{dispatcher}},
		{FinalizeTrip, []Identity{admin, driver}, []Identity{dispatcher}},
		{ReleaseTrip, []Identity{admin}, []Identity{dispatcher, driver}},
		{RecordCreditNote, []Identity{admin}, []Identity{dispatcher, driver}},
		{RecordFuelLoad, []Identity{admin, driver}, []Identity{dispatcher}},
		{AdjustFuelStock, []Identity{admin}, []Identity{dispatcher, driver}},
		{GetFuelBalance, []Identity{admin, dispatcher, driver}, nil},
		{SummarizeFuel, []Identity{admin, dispatcher}, []Identity{driver}},
		{RunBillingSweep, []Identity{admin}, []Identity{dispatcher, driver}},
	}

	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			for _, who := range tc.allowed {
				assert.NoError(t, Check(who, tc.op), who.Role)
			}
			for _, who := range tc.denied {
				err := Check(who, tc.op)
				assert.True(t, Models.IsForbidden(err), who.Role)
			}
		})
	}
}

func TestCheckDeniesUnknownAndAnonymous(t *testing.T) {
	assert.True(t, Models.IsForbidden(Check(Identity{}, CreateTrip)))
	assert.True(t, Models.IsForbidden(Check(Identity{Role: Models.RoleAdmin}, Operation("launch rockets"))))
}

type fakeUsers map[uint]Models.User

func (f fakeUsers) UserByID(_ context.Context, id uint) (Models.User, error) {
	u, ok := f[id]
	if !ok {
		return u, &Models.NotFoundError{Entity: "user", ID: id}
	}
	return u, nil
}

func TestJWTRoundTrip(t *testing.T) {
	user := Models.User{Model: gorm.Model{ID: 7}, Role: Models.RoleDriver}
	r := NewJWTResolver("test-secret", time.Hour, fakeUsers{7: user})

	token, expires, err := r.Issue(user)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	who, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 7, Role: Models.RoleDriver}, who)
}

func TestJWTUsesCurrentRole(t *testing.T) {
	user := Models.User{Model: gorm.Model{ID: 7}, Role: Models.RoleDriver}
	users := fakeUsers{7: user}
	r := NewJWTResolver("test-secret", time.Hour, users)

	token, _, err := r.Issue(user)
	require.NoError(t, err)

	promoted := user
	promoted.Role = Models.RoleDispatcher
	users[7] = promoted

	who, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Models.RoleDispatcher, who.Role)

	delete(users, 7)
	_, err = r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsBadTokens(t *testing.T) {
	r := NewJWTResolver("test-secret", time.Hour, nil)
	other := NewJWTResolver("other-secret", time.Hour, nil)

	token, _, err := other.Issue(Models.User{Model: gorm.Model{ID: 1}, Role: Models.RoleAdmin})
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTResolver("test-secret", time.Hour, nil)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err = expired.Issue(Models.User{Model: gorm.Model{ID: 1}, Role: Models.RoleAdmin})
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
