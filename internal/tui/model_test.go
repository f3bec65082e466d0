package tui

import (
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/image-finder/pkg/finder"
	"github.com/Sternrassler/image-finder/pkg/pexels"
)

type fakeController struct {
	mu          sync.Mutex
	state       finder.State
	started     int
	queries     []string
	loadMores   int
	loadMoreErr error
}

func (f *fakeController) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.state.Busy = true
	return nil
}

func (f *fakeController) SubmitQuery(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	f.state = finder.State{Query: text, Page: 1, Busy: true}
	return nil
}

func (f *fakeController) LoadMore() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadMoreErr != nil {
		return f.loadMoreErr
	}
	f.loadMores++
	f.state.Page++
	f.state.Busy = true
	return nil
}

func (f *fakeController) State() finder.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) set(state finder.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func photo(id int64, photographer string) pexels.Photo {
	return pexels.Photo{
		ID:           id,
		Alt:          "a photo",
		Photographer: photographer,
		Src:          pexels.PhotoSource{Original: "https://images.pexels.com/photos/" + photographer + ".jpeg"},
	}
}

func TestModel_InitialView(t *testing.T) {
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 1}}
	m := NewModel(ctrl)

	view := m.View()
	assert.NotContains(t, view, "Load more")
	assert.Contains(t, view, "Image")
	assert.Contains(t, view, "Finder")
	assert.Contains(t, view, "Showing results for")
	assert.Contains(t, view, "nature")
	assert.Contains(t, view, "No images found")
}

func TestModel_StateMsgRereadsController(t *testing.T) {
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 1, Busy: true}}
	m := NewModel(ctrl)

	assert.Contains(t, m.View(), "Loading images...")
	assert.NotContains(t, m.View(), "No images found")

	ctrl.set(finder.State{
		Query:        "nature",
		Page:         1,
		Results:      []pexels.Photo{photo(1, "alice"), photo(2, "bob")},
		TotalResults: 40,
	})
	m.Update(StateMsg{})

	view := m.View()
	assert.Contains(t, view, "by alice")
	assert.Contains(t, view, "by bob")
	assert.Contains(t, view, "https://images.pexels.com/photos/alice.jpeg")
	assert.Contains(t, view, "2 of 40")
	assert.Contains(t, view, "Load more")
	assert.Contains(t, view, "ctrl+n load more", "input is focused")
	assert.NotContains(t, view, "Loading images...")
}

func TestModel_SubmitQuery(t *testing.T) {
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 1}}
	m := NewModel(ctrl)
	require.True(t, m.input.Focused())

	m.input.SetValue("cats")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.False(t, m.input.Focused())

	msg := cmd()
	assert.Equal(t, StateMsg{}, msg)
	assert.Equal(t, []string{"cats"}, ctrl.queries)

	m.Update(msg)
	assert.Contains(t, m.View(), "cats")
	assert.Contains(t, m.View(), "Loading images...")
}

func TestModel_LoadMore(t *testing.T) {
	ctrl := &fakeController{state: finder.State{
		Query:   "nature",
		Page:    1,
		Results: []pexels.Photo{photo(1, "alice")},
	}}
	m := NewModel(ctrl)
	m.input.Blur()

	_, cmd := m.Update(keyRunes("m"))
	require.NotNil(t, cmd)
	assert.Equal(t, StateMsg{}, cmd())
	assert.Equal(t, 1, ctrl.loadMores)
}

func TestModel_LoadMoreIgnoredWhileBusy(t *testing.T) {
	ctrl := &fakeController{state: finder.State{
		Query:   "nature",
		Page:    1,
		Results: []pexels.Photo{photo(1, "alice")},
		Busy:    true,
	}}
	m := NewModel(ctrl)
	m.input.Blur()

	_, cmd := m.Update(keyRunes("m"))
	assert.Nil(t, cmd)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Nil(t, cmd)
	assert.Zero(t, ctrl.loadMores)
	assert.NotContains(t, m.View(), "Load more")
}

func TestModel_LoadMoreWhileTyping(t *testing.T) {
	ctrl := &fakeController{state: finder.State{
		Query:   "nature",
		Page:    1,
		Results: []pexels.Photo{photo(1, "alice")},
	}}
	m := NewModel(ctrl)
	require.True(t, m.input.Focused())
	m.input.SetValue("mou")

	view := m.View()
	assert.Contains(t, view, "Load more")
	assert.Contains(t, view, "ctrl+n load more")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	require.NotNil(t, cmd)
	assert.Equal(t, StateMsg{}, cmd())
	assert.Equal(t, 1, ctrl.loadMores)
	assert.Equal(t, "mou", m.input.Value())
	assert.True(t, m.input.Focused())
}

func TestModel_RejectedLoadMoreIsSilent(t *testing.T) {
	ctrl := &fakeController{
		state:       finder.State{Query: "nature", Page: 1, Results: []pexels.Photo{photo(1, "alice")}},
		loadMoreErr: finder.ErrBusy,
	}
	m := NewModel(ctrl)
	m.input.Blur()

	_, cmd := m.Update(keyRunes("m"))
	require.NotNil(t, cmd)

	_, next := m.Update(cmd())
	assert.Nil(t, next)
	assert.Empty(t, m.toast)
}

func TestModel_Toast(t *testing.T) {
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 1}}
	m := NewModel(ctrl)

	_, cmd := m.Update(ToastMsg{Text: finder.FetchErrorMessage})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Error while fetching images")

	// An expiry for an older toast leaves a newer one alone.
	m.Update(ToastMsg{Text: "second"})
	m.Update(clearToastMsg{id: 1})
	assert.Equal(t, "second", m.toast)

	m.Update(clearToastMsg{id: 2})
	assert.Empty(t, m.toast)
	assert.NotContains(t, m.View(), "second")
}

func TestModel_UnexpectedControlErrorShowsToast(t *testing.T) {
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 1}}
	m := NewModel(ctrl)

	m.Update(controlErrMsg{err: errors.New("boom")})
	assert.Equal(t, "boom", m.toast)
}

func TestModel_Start(t *testing.T) {
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 1}}
	m := NewModel(ctrl)

	assert.Equal(t, StateMsg{}, m.start()())
	assert.Equal(t, 1, ctrl.started)
}

func TestModel_Quit(t *testing.T) {
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 1}}
	m := NewModel(ctrl)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	m.input.Blur()
	_, cmd = m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_FocusKeys(t *testing.T) {
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 1}}
	m := NewModel(ctrl)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.input.Focused())

	m.Update(keyRunes("/"))
	assert.True(t, m.input.Focused())
	assert.Contains(t, m.View(), "enter search")
}

func TestModel_ResultsFitHeight(t *testing.T) {
	results := make([]pexels.Photo, 0, 30)
	for i := int64(1); i <= 30; i++ {
		results = append(results, photo(i, "p"))
	}
	ctrl := &fakeController{state: finder.State{Query: "nature", Page: 3, Results: results}}
	m := NewModel(ctrl)

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 31})

	view := m.View()
	assert.Contains(t, view, "... 20 earlier photos")
	assert.Contains(t, view, " 30. a photo")
	assert.NotContains(t, view, " 20. a photo")
}

func TestNotifier_LogsBeforeAttach(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	n.Notify("nothing attached")

	var _ finder.Notifier = n
}
