package triesync

import (
	"context"
	"reflect"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/mock/gomock"

	"github.com/attestate/leafsync/common/types"
	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/trie"
)

// Mockrequester is a mock of requester interface.
type Mockrequester struct {
	ctrl     *gomock.Controller
	recorder *MockrequesterMockRecorder
}

// MockrequesterMockRecorder is the mock recorder for Mockrequester.
type MockrequesterMockRecorder struct {
	mock *Mockrequester
}

// NewMockrequester creates a new mock instance.
func NewMockrequester(ctrl *gomock.Controller) *Mockrequester {
	mock := &Mockrequester{ctrl: ctrl}
	mock.recorder = &MockrequesterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *Mockrequester) EXPECT() *MockrequesterMockRecorder {
	return m.recorder
}

// Request mocks base method.
func (m *Mockrequester) Request(arg0 context.Context, arg1 peer.ID, arg2 []byte) ([][]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Request", arg0, arg1, arg2)
	ret0, _ := ret[0].([][]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Request indicates an expected call of Request.
func (mr *MockrequesterMockRecorder) Request(arg0, arg1, arg2 any) *MockrequesterRequestCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Request", reflect.TypeOf((*Mockrequester)(nil).Request), arg0, arg1, arg2)
	return &MockrequesterRequestCall{Call: call}
}

// MockrequesterRequestCall wrap *gomock.Call.
type MockrequesterRequestCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockrequesterRequestCall) Return(arg0 [][]byte, arg1 error) *MockrequesterRequestCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockrequesterRequestCall) Do(f func(context.Context, peer.ID, []byte) ([][]byte, error)) *MockrequesterRequestCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockrequesterRequestCall) DoAndReturn(f func(context.Context, peer.ID, []byte) ([][]byte, error)) *MockrequesterRequestCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Mockpublisher is a mock of publisher interface.
type Mockpublisher struct {
	ctrl     *gomock.Controller
	recorder *MockpublisherMockRecorder
}

// MockpublisherMockRecorder is the mock recorder for Mockpublisher.
type MockpublisherMockRecorder struct {
	mock *Mockpublisher
}

// NewMockpublisher creates a new mock instance.
func NewMockpublisher(ctrl *gomock.Controller) *Mockpublisher {
	mock := &Mockpublisher{ctrl: ctrl}
	mock.recorder = &MockpublisherMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *Mockpublisher) EXPECT() *MockpublisherMockRecorder {
	return m.recorder
}

// Publish mocks base method.
func (m *Mockpublisher) Publish(arg0 context.Context, arg1 string, arg2 []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Publish", arg0, arg1, arg2)
	ret0, _ := ret[0].(error)
	return ret0
}

// Publish indicates an expected call of Publish.
func (mr *MockpublisherMockRecorder) Publish(arg0, arg1, arg2 any) *MockpublisherPublishCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Publish", reflect.TypeOf((*Mockpublisher)(nil).Publish), arg0, arg1, arg2)
	return &MockpublisherPublishCall{Call: call}
}

// MockpublisherPublishCall wrap *gomock.Call.
type MockpublisherPublishCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockpublisherPublishCall) Return(arg0 error) *MockpublisherPublishCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockpublisherPublishCall) Do(f func(context.Context, string, []byte) error) *MockpublisherPublishCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockpublisherPublishCall) DoAndReturn(f func(context.Context, string, []byte) error) *MockpublisherPublishCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Mockallowlister is a mock of allowlister interface.
type Mockallowlister struct {
	ctrl     *gomock.Controller
	recorder *MockallowlisterMockRecorder
}

// MockallowlisterMockRecorder is the mock recorder for Mockallowlister.
type MockallowlisterMockRecorder struct {
	mock *Mockallowlister
}

// NewMockallowlister creates a new mock instance.
func NewMockallowlister(ctrl *gomock.Controller) *Mockallowlister {
	mock := &Mockallowlister{ctrl: ctrl}
	mock.recorder = &MockallowlisterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *Mockallowlister) EXPECT() *MockallowlisterMockRecorder {
	return m.recorder
}

// Allowlist mocks base method.
func (m *Mockallowlister) Allowlist(arg0 context.Context) (map[string]struct{}, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Allowlist", arg0)
	ret0, _ := ret[0].(map[string]struct{})
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Allowlist indicates an expected call of Allowlist.
func (mr *MockallowlisterMockRecorder) Allowlist(arg0 any) *MockallowlisterAllowlistCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Allowlist", reflect.TypeOf((*Mockallowlister)(nil).Allowlist), arg0)
	return &MockallowlisterAllowlistCall{Call: call}
}

// MockallowlisterAllowlistCall wrap *gomock.Call.
type MockallowlisterAllowlistCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockallowlisterAllowlistCall) Return(arg0 map[string]struct{}, arg1 error) *MockallowlisterAllowlistCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockallowlisterAllowlistCall) Do(f func(context.Context) (map[string]struct{}, error)) *MockallowlisterAllowlistCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockallowlisterAllowlistCall) DoAndReturn(f func(context.Context) (map[string]struct{}, error)) *MockallowlisterAllowlistCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockrecordAdder is a mock of recordAdder interface.
type MockrecordAdder struct {
	ctrl     *gomock.Controller
	recorder *MockrecordAdderMockRecorder
}

// MockrecordAdderMockRecorder is the mock recorder for MockrecordAdder.
type MockrecordAdderMockRecorder struct {
	mock *MockrecordAdder
}

// NewMockrecordAdder creates a new mock instance.
func NewMockrecordAdder(ctrl *gomock.Controller) *MockrecordAdder {
	mock := &MockrecordAdder{ctrl: ctrl}
	mock.recorder = &MockrecordAdderMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockrecordAdder) EXPECT() *MockrecordAdderMockRecorder {
	return m.recorder
}

// Add mocks base method.
func (m *MockrecordAdder) Add(arg0 trie.Writer, arg1 *types.Record, arg2 map[string]struct{}, arg3 bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Add", arg0, arg1, arg2, arg3)
	ret0, _ := ret[0].(error)
	return ret0
}

// Add indicates an expected call of Add.
func (mr *MockrecordAdderMockRecorder) Add(arg0, arg1, arg2, arg3 any) *MockrecordAdderAddCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Add", reflect.TypeOf((*MockrecordAdder)(nil).Add), arg0, arg1, arg2, arg3)
	return &MockrecordAdderAddCall{Call: call}
}

// MockrecordAdderAddCall wrap *gomock.Call.
type MockrecordAdderAddCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockrecordAdderAddCall) Return(arg0 error) *MockrecordAdderAddCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockrecordAdderAddCall) Do(f func(trie.Writer, *types.Record, map[string]struct{}, bool) error) *MockrecordAdderAddCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockrecordAdderAddCall) DoAndReturn(f func(trie.Writer, *types.Record, map[string]struct{}, bool) error) *MockrecordAdderAddCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Mockinitiator is a mock of initiator interface.
type Mockinitiator struct {
	ctrl     *gomock.Controller
	recorder *MockinitiatorMockRecorder
}

// MockinitiatorMockRecorder is the mock recorder for Mockinitiator.
type MockinitiatorMockRecorder struct {
	mock *Mockinitiator
}

// NewMockinitiator creates a new mock instance.
func NewMockinitiator(ctrl *gomock.Controller) *Mockinitiator {
	mock := &Mockinitiator{ctrl: ctrl}
	mock.recorder = &MockinitiatorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *Mockinitiator) EXPECT() *MockinitiatorMockRecorder {
	return m.recorder
}

// Initiate mocks base method.
func (m *Mockinitiator) Initiate(arg0 context.Context, arg1 peer.ID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Initiate", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// Initiate indicates an expected call of Initiate.
func (mr *MockinitiatorMockRecorder) Initiate(arg0, arg1 any) *MockinitiatorInitiateCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Initiate", reflect.TypeOf((*Mockinitiator)(nil).Initiate), arg0, arg1)
	return &MockinitiatorInitiateCall{Call: call}
}

// MockinitiatorInitiateCall wrap *gomock.Call.
type MockinitiatorInitiateCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockinitiatorInitiateCall) Return(arg0 error) *MockinitiatorInitiateCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockinitiatorInitiateCall) Do(f func(context.Context, peer.ID) error) *MockinitiatorInitiateCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockinitiatorInitiateCall) DoAndReturn(f func(context.Context, peer.ID) error) *MockinitiatorInitiateCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockrootSource is a mock of rootSource interface.
type MockrootSource struct {
	ctrl     *gomock.Controller
	recorder *MockrootSourceMockRecorder
}

// MockrootSourceMockRecorder is the mock recorder for MockrootSource.
type MockrootSourceMockRecorder struct {
	mock *MockrootSource
}

// NewMockrootSource creates a new mock instance.
func NewMockrootSource(ctrl *gomock.Controller) *MockrootSource {
	mock := &MockrootSource{ctrl: ctrl}
	mock.recorder = &MockrootSourceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockrootSource) EXPECT() *MockrootSourceMockRecorder {
	return m.recorder
}

// Root mocks base method.
func (m *MockrootSource) Root() hash.Hash32 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Root")
	ret0, _ := ret[0].(hash.Hash32)
	return ret0
}

// Root indicates an expected call of Root.
func (mr *MockrootSourceMockRecorder) Root() *MockrootSourceRootCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Root", reflect.TypeOf((*MockrootSource)(nil).Root))
	return &MockrootSourceRootCall{Call: call}
}

// MockrootSourceRootCall wrap *gomock.Call.
type MockrootSourceRootCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockrootSourceRootCall) Return(arg0 hash.Hash32) *MockrootSourceRootCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockrootSourceRootCall) Do(f func() hash.Hash32) *MockrootSourceRootCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockrootSourceRootCall) DoAndReturn(f func() hash.Hash32) *MockrootSourceRootCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}
