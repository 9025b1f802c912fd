package scraper

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockPage is a testify mock of Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) SetCookie(name, value, domain string) error {
	return m.Called(name, value, domain).Error(0)
}

func (m *MockPage) Navigate(url string) error {
	return m.Called(url).Error(0)
}

func (m *MockPage) WaitForSelector(selector string) error {
	return m.Called(selector).Error(0)
}

func (m *MockPage) Click(selector string) error {
	return m.Called(selector).Error(0)
}

func (m *MockPage) Hover(selector string) error {
	return m.Called(selector).Error(0)
}

func (m *MockPage) TextContent(selector string) (string, error) {
	args := m.Called(selector)
	return args.String(0), args.Error(1)
}

func (m *MockPage) CountExactText(tag, text string) (int, error) {
	args := m.Called(tag, text)
	return args.Int(0), args.Error(1)
}

func (m *MockPage) ClickExactTextAndWait(tag, text string) error {
	return m.Called(tag, text).Error(0)
}

func (m *MockPage) Content() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockPage) Screenshot(path string) error {
	return m.Called(path).Error(0)
}

// fakeSession is a scripted page for whole-attempt tests.
type fakeSession struct {
	html          string
	currentRegion string
	regions       []string

	navigateErr   error
	contentErr    error
	screenshotErr error

	mu          sync.Mutex
	cookies     map[string]string
	navigated   []string
	switchedTo  string
	screenshots []string
	closed      bool
}

func (f *fakeSession) SetCookie(name, value, domain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cookies == nil {
		f.cookies = map[string]string{}
	}
	f.cookies[domain+"/"+name] = value
	return nil
}

func (f *fakeSession) Navigate(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return f.navigateErr
}

func (f *fakeSession) WaitForSelector(string) error { return nil }
func (f *fakeSession) Click(string) error { return nil }
func (f *fakeSession) Hover(string) error { return nil }

func (f *fakeSession) TextContent(selector string) (string, error) {
	if selector == currentRegionSelector {
		return f.currentRegion, nil
	}
	return "", nil
}

func (f *fakeSession) CountExactText(_, text string) (int, error) {
	n := 0
	for _, r := range f.regions {
		if r == text {
			n++
		}
	}
	return n, nil
}

func (f *fakeSession) ClickExactTextAndWait(_, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchedTo = text
	f.currentRegion = text
	return nil
}

func (f *fakeSession) Content() (string, error) {
	if f.contentErr != nil {
		return "", f.contentErr
	}
	return f.html, nil
}

func (f *fakeSession) Screenshot(path string) error {
	if f.screenshotErr != nil {
		return f.screenshotErr
	}
	f.mu.Lock()
	f.screenshots = append(f.screenshots, path)
	f.mu.Unlock()
	return os.WriteFile(path, []byte("jpeg"), 0644)
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeLauncher hands out one scripted session per launch. The last session
// is reused when attempts outnumber sessions.
type fakeLauncher struct {
	sessions []*fakeSession
	err      error
	launches int
}

func (l *fakeLauncher) Launch(ctx context.Context) (Session, error) {
	if l.err != nil {
		l.launches++
		return nil, l.err
	}
	if len(l.sessions) == 0 {
		return nil, errors.New("no scripted session")
	}
	i := l.launches
	if i >= len(l.sessions) {
		i = len(l.sessions) - 1
	}
	l.launches++
	return l.sessions[i], nil
}
