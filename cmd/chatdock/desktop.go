package cli

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"github.com/chatdock/chatdock/internal/config"
	"github.com/chatdock/chatdock/internal/crashlog"
	"github.com/chatdock/chatdock/internal/devlog"
	"github.com/chatdock/chatdock/internal/hotkey"
	"github.com/chatdock/chatdock/internal/imefix"
	"github.com/chatdock/chatdock/internal/notify"
	"github.com/chatdock/chatdock/internal/updater"
)

// windowState persists the window position and size between restarts.
// Uses absolute screen coordinates so it restores to the correct monitor.
type windowState struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func windowStatePath(dataDir string) string {
	return filepath.Join(dataDir, "window-state.json")
}

// loadWindowState reads saved window state from disk.
// Returns nil if the file doesn't exist or can't be read.
func loadWindowState(dataDir string) *windowState {
	data, err := os.ReadFile(windowStatePath(dataDir))
	if err != nil {
		return nil
	}
	var state windowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}
	// Sanity check: reject nonsensical sizes
	if state.Width < 400 || state.Height < 300 {
		return nil
	}
	return &state
}

// saveWindowState persists the current window position and size to disk.
func saveWindowState(dataDir string, window *application.WebviewWindow) {
	w, h := window.Size()
	if w < 400 || h < 300 {
		return
	}
	x, y := window.Position()
	state := windowState{X: x, Y: y, Width: w, Height: h}
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	_ = os.WriteFile(windowStatePath(dataDir), data, 0644)
}

//go:embed icons/appicon.png
var appIcon []byte

//go:embed icons/tray-icon.png
var trayIcon []byte

// readyTimeout bounds how long the loading overlay waits for the chat app's
// composer before the navigation is treated as failed.
const readyTimeout = 30 * time.Second

// RunDesktop starts ChatDock with a native window and system tray.
func RunDesktop(cfg *config.Config) {
	dataDir, err := config.DataDir()
	if err != nil {
		fmt.Printf("\033[31mError: cannot determine data directory: %v\033[0m\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fmt.Printf("\033[31mError: cannot create data directory: %v\033[0m\n", err)
		os.Exit(1)
	}

	// Enforce single instance with lock file
	lockFile, err := acquireLock(dataDir)
	if err != nil {
		fmt.Printf("\033[31mError: %v\033[0m\n", err)
		fmt.Println("\033[33mChatDock is already running.\033[0m")
		os.Exit(1)
	}
	defer releaseLock(lockFile)

	crashlog.Init(dataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The chat window is the focus target for reinjected keys; skip
	// injection whenever it is not foreground.
	var focused atomic.Bool
	focused.Store(true)

	// Host side of the IME fix: channel router, log relay, reinjector.
	router := imefix.NewRouter()

	relay := imefix.NewRelay(nil)
	logSub := router.Register(imefix.MsgConsoleLog, relay.Forward)
	defer logSub.Close()

	reinjector := imefix.NewReinjector(imefix.RealClock(), &imefix.ExecSender{Focused: focused.Load})
	fixSub := router.Register(imefix.MsgEnterFix, func(imefix.Message) {
		devlog.Printf("[Desktop] resend request, scheduling Enter reinjection\n")
		reinjector.OnResendRequest()
	})
	defer fixSub.Close()

	readyCh := make(chan string, 1)
	readySub := router.Register(imefix.MsgComposerReady, func(m imefix.Message) {
		select {
		case readyCh <- m.Payload:
		default:
		}
	})
	defer readySub.Close()

	wailsApp := application.New(application.Options{
		Name: "ChatDock",
		Icon: appIcon,
		Mac: application.MacOptions{
			// Don't terminate when last window closed (keep running in tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
		Windows: application.WindowsOptions{
			DisableQuitOnLastWindowClosed: true,
		},
		Linux: application.LinuxOptions{
			DisableQuitOnLastWindowClosed: true,
			ProgramName:                   "chatdock",
		},
		// The probe posts channel messages through window._wails.invoke,
		// which bypasses CORS and mixed content blocking on the hosted page.
		RawMessageHandler: func(_ application.Window, message string, _ *application.OriginInfo) {
			if !strings.HasPrefix(message, imefix.BridgePrefix) {
				return
			}
			router.Dispatch(message)
		},
		OnShutdown: func() {
			fmt.Println("\n\033[32mChatDock stopped.\033[0m")
		},
	})

	// Restore saved window geometry or use configured defaults
	winWidth, winHeight := cfg.Window.Width, cfg.Window.Height
	saved := loadWindowState(dataDir)
	if saved != nil {
		winWidth = saved.Width
		winHeight = saved.Height
	}

	window := newChatWindow(wailsApp, cfg, winWidth, winHeight)

	// Gate saves until after restore so initial placement doesn't overwrite
	// saved state. Track quitting so the close hook allows the real close.
	var stateRestored atomic.Bool
	var quitting atomic.Bool

	// Restore position after a short delay to ensure the window is fully
	// initialized. Windows (WebView2) needs longer than macOS (WebKit).
	restoreDelay := 200 * time.Millisecond
	if goruntime.GOOS == "windows" {
		restoreDelay = 500 * time.Millisecond
	}
	if saved != nil {
		go func() {
			time.Sleep(restoreDelay)
			window.SetPosition(saved.X, saved.Y)
			stateRestored.Store(true)
		}()
	} else {
		stateRestored.Store(true)
	}

	saveMoveResize := func(event *application.WindowEvent) {
		if stateRestored.Load() && !quitting.Load() {
			saveWindowState(dataDir, window)
		}
	}
	window.RegisterHook(events.Common.WindowDidMove, saveMoveResize)
	window.RegisterHook(events.Common.WindowDidResize, saveMoveResize)
	if goruntime.GOOS == "windows" {
		window.RegisterHook(events.Windows.WindowDidMove, saveMoveResize)
		window.RegisterHook(events.Windows.WindowDidResize, saveMoveResize)
	}

	// Visibility is owned by one controller; hotkey, tray and the close
	// hook all go through it. Showing refocuses the chat composer so
	// synthetic dispatch always has a target.
	controller := hotkey.NewController(windowAdapter{window}, func() {
		window.ExecJS(imefix.FocusComposerJS())
	})

	// Hide window on close instead of destroying it (minimize to tray).
	closeHandler := func(event *application.WindowEvent) {
		if quitting.Load() {
			return
		}
		saveWindowState(dataDir, window)
		window.Hide()
		controller.SetVisible(false)
		event.Cancel()
	}
	window.RegisterHook(events.Common.WindowClosing, closeHandler)
	if goruntime.GOOS == "windows" {
		window.RegisterHook(events.Windows.WindowClosing, closeHandler)
	}

	// Track foreground focus for the reinjection guard, and refocus the
	// composer when the app comes back to front.
	window.RegisterHook(events.Common.WindowFocus, func(*application.WindowEvent) {
		focused.Store(true)
		window.ExecJS(imefix.FocusComposerJS())
	})
	window.RegisterHook(events.Common.WindowLostFocus, func(*application.WindowEvent) {
		focused.Store(false)
	})

	checker := setupTray(wailsApp, window, controller, dataDir, &quitting)

	if cfg.UpdateCheck {
		go checker.Run(ctx)
	}

	// Global show/hide hotkey
	hotkeyMgr := newHotkeyManager(ctx, controller)
	hotkeyMgr.apply(cfg.Hotkey)

	// Loading overlay lifecycle: drop it once the composer exists, retry
	// the navigation when it never appears.
	go watchReadiness(ctx, window, cfg.ChatURL, readyCh)

	// Live-reload settings (chat URL and hotkey only; the rest applies on
	// next start).
	path, pathErr := config.Path()
	if configPath != "" {
		path, pathErr = configPath, nil
	}
	if pathErr == nil {
		go func() {
			current := *cfg
			_ = config.Watch(ctx, path, func(next *config.Config) {
				if next.ChatURL != current.ChatURL {
					devlog.Printf("[Config] chat URL changed, navigating\n")
					window.SetURL(next.ChatURL)
				}
				if next.Hotkey != current.Hotkey {
					devlog.Printf("[Config] hotkey changed to %q\n", next.Hotkey)
					hotkeyMgr.apply(next.Hotkey)
				}
				current = *next
			})
		}()
	}

	// Run Wails event loop on main thread (blocks until app.Quit()).
	// macOS requires the event loop on the main thread for window
	// operations to work.
	if err := wailsApp.Run(); err != nil {
		crashlog.LogError("desktop", err, nil)
		fmt.Fprintf(os.Stderr, "Desktop error: %v\n", err)
	}

	cancel()
}

// newChatWindow creates the main webview window with the probe installed.
func newChatWindow(wailsApp *application.App, cfg *config.Config, width, height int) *application.WebviewWindow {
	bootstrap := bootstrapJS(cfg)

	opts := application.WebviewWindowOptions{
		Name:      "main",
		Title:     "ChatDock",
		Width:     width,
		Height:    height,
		MinWidth:  600,
		MinHeight: 400,
		Mac: application.MacWindow{
			Backdrop: application.MacBackdropTranslucent,
		},
		Windows: application.WindowsWindow{
			HiddenOnTaskbar: false,
		},
		JS: bootstrap,
	}

	if goruntime.GOOS == "windows" {
		// Wails v3 Windows quirk: WebviewWindowOptions.JS is only applied
		// for HTML-mode windows. Create with a blank page so the bootstrap
		// is registered via AddScriptToExecuteOnDocumentCreated (persists
		// across navigations), then navigate to the chat URL.
		opts.HTML = " "
		w := wailsApp.Window.NewWithOptions(opts)
		w.SetURL(cfg.ChatURL)
		return w
	}

	opts.URL = cfg.ChatURL
	return wailsApp.Window.NewWithOptions(opts)
}

// bootstrapJS assembles everything injected into the chat page: the IME
// probe, the readiness probe and the loading overlay.
func bootstrapJS(cfg *config.Config) string {
	return imefix.BuildProbeJS(cfg.Debug) + "\n" +
		imefix.ReadyProbeJS() + "\n" +
		overlayJS + "\n" +
		runtimeReadyJS
}

// runtimeReadyJS forces "wails:runtime:ready" from inside the page. On an
// external page the Wails runtime never sends it itself, which leaves
// runtimeLoaded false and queues every ExecJS call forever. The short delay
// lets the runtime attempt its own initialization first.
const runtimeReadyJS = `(function(){
  setTimeout(function(){
    try {
      if (window._wails && window._wails.invoke) {
        window._wails.invoke("wails:runtime:ready");
      } else if (window.webkit && window.webkit.messageHandlers && window.webkit.messageHandlers.external) {
        window.webkit.messageHandlers.external.postMessage("wails:runtime:ready");
      } else if (window.chrome && window.chrome.webview) {
        window.chrome.webview.postMessage("wails:runtime:ready");
      }
    } catch(e) {}
  }, 200);
})();`

// overlayJS shows a minimal loading layer until the composer reports ready.
const overlayJS = `(function(){
  if(window.__chatdockOverlay||document.getElementById("__chatdock_overlay"))return;
  window.__chatdockOverlay=true;
  function install(){
    if(!document.body)return setTimeout(install,50);
    var d=document.createElement("div");
    d.id="__chatdock_overlay";
    d.style.cssText="position:fixed;inset:0;z-index:2147483647;display:flex;align-items:center;justify-content:center;background:#1b1b1f;color:#9a9aa3;font:14px system-ui;transition:opacity .2s";
    d.textContent="Loading chat…";
    document.body.appendChild(d);
  }
  install();
})();`

const removeOverlayJS = `(function(){var d=document.getElementById("__chatdock_overlay");if(d){d.style.opacity="0";setTimeout(function(){d.remove()},200)}})();`

func errorBannerJS(msg string) string {
	b, _ := json.Marshal(msg)
	return fmt.Sprintf(`(function(){
  var d=document.getElementById("__chatdock_overlay");
  if(!d){d=document.createElement("div");d.id="__chatdock_overlay";d.style.cssText="position:fixed;inset:0;z-index:2147483647;display:flex;align-items:center;justify-content:center;background:#1b1b1f;color:#d9d9e0;font:14px system-ui";if(document.body)document.body.appendChild(d)}
  d.textContent=%s;
})();`, string(b))
}

// watchReadiness waits for the composerReady signal, clearing the overlay on
// success and retrying the navigation with backoff on timeout.
func watchReadiness(ctx context.Context, window *application.WebviewWindow, url string, readyCh <-chan string) {
	backoff := 5 * time.Second
	for attempt := 1; ; attempt++ {
		select {
		case loc := <-readyCh:
			devlog.Printf("[Desktop] composer ready at %s\n", loc)
			window.ExecJS(removeOverlayJS)
			// Stay subscribed: a reload or in-app navigation re-reports
			// readiness and re-clears the overlay.
			for {
				select {
				case <-readyCh:
					window.ExecJS(removeOverlayJS)
				case <-ctx.Done():
					return
				}
			}
		case <-time.After(readyTimeout):
			devlog.Printf("[Desktop] page not ready after %s (attempt %d)\n", readyTimeout, attempt)
			if attempt >= 3 {
				window.ExecJS(errorBannerJS("Could not load the chat. Check your connection, then press Ctrl+R."))
				notify.Send("ChatDock", "Could not load the chat application.")
				return
			}
			window.ExecJS(errorBannerJS(fmt.Sprintf("Still loading… retrying (%d/3)", attempt)))
			time.Sleep(backoff)
			backoff *= 2
			window.SetURL(url)
		case <-ctx.Done():
			return
		}
	}
}

// setupTray builds the system tray and returns the background update
// checker wired to it.
func setupTray(wailsApp *application.App, window *application.WebviewWindow, controller *hotkey.Controller, dataDir string, quitting *atomic.Bool) *updater.BackgroundChecker {
	systray := wailsApp.SystemTray.New()
	systray.SetIcon(trayIcon)
	systray.SetLabel("")

	trayMenu := wailsApp.NewMenu()

	trayMenu.Add("Show").OnClick(func(*application.Context) {
		controller.Show()
	})
	trayMenu.Add("Hide").OnClick(func(*application.Context) {
		saveWindowState(dataDir, window)
		controller.Hide()
	})
	trayMenu.AddSeparator()

	updateItem := trayMenu.Add("Check for Updates")
	checker := updater.NewBackgroundChecker(AppVersion, 6*time.Hour, func(result *updater.Result) {
		notify.Send("ChatDock", "Update available: "+result.LatestVersion)
		updateItem.SetLabel("Update Available (" + result.LatestVersion + ")")
	})

	updateItem.OnClick(func(*application.Context) {
		if last := checker.LastResult(); last != nil && last.Available {
			openURL(last.ReleaseURL)
			return
		}
		updateItem.SetLabel("Checking...")
		go func() {
			result, err := updater.Check(context.Background(), AppVersion)
			if err != nil || result == nil {
				updateItem.SetLabel("Check for Updates")
				return
			}
			if !result.Available {
				updateItem.SetLabel("Up to Date (" + result.CurrentVersion + ")")
				time.AfterFunc(5*time.Second, func() {
					updateItem.SetLabel("Check for Updates")
				})
				return
			}
			updateItem.SetLabel("Update Available (" + result.LatestVersion + ")")
			openURL(result.ReleaseURL)
		}()
	})

	trayMenu.AddSeparator()
	trayMenu.Add("Quit ChatDock").OnClick(func(*application.Context) {
		saveWindowState(dataDir, window)
		quitting.Store(true)
		safeQuit(wailsApp)
	})
	systray.SetMenu(trayMenu)

	return checker
}

// hotkeyManager re-registers the global hotkey when settings change.
type hotkeyManager struct {
	ctx        context.Context
	controller *hotkey.Controller
	backend    hotkey.Backend

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newHotkeyManager(ctx context.Context, controller *hotkey.Controller) *hotkeyManager {
	return &hotkeyManager{ctx: ctx, controller: controller, backend: hotkey.SystemBackend{}}
}

// apply replaces the active registration with chord; empty disables.
func (m *hotkeyManager) apply(chord string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if chord == "" || !m.backend.IsAvailable() {
		return
	}

	reg, err := m.backend.Register(chord)
	if err != nil {
		devlog.Printf("[Hotkey] register %q failed: %v\n", chord, err)
		return
	}
	runCtx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	go m.controller.Run(runCtx, reg)
}

// windowAdapter exposes a Wails window to the hotkey controller.
type windowAdapter struct {
	win *application.WebviewWindow
}

func (w windowAdapter) Show()  { w.win.Show() }
func (w windowAdapter) Hide()  { w.win.Hide() }
func (w windowAdapter) Focus() { w.win.Focus() }

// safeQuit calls App.Quit() with recovery from Wails v3 alpha panics during
// system tray teardown.
func safeQuit(app *application.App) {
	defer func() {
		if r := recover(); r != nil {
			crashlog.LogPanic("desktop", r, map[string]string{"phase": "quit"})
			os.Exit(0)
		}
	}()
	app.Quit()
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd string
	var args []string
	switch goruntime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}
	_ = exec.Command(cmd, args...).Start()
}
