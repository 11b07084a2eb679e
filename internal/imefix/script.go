package imefix

import (
	"encoding/json"
	"fmt"
)

// The probe script is the deployed form of the Tracker state machine. It has
// to live inside the page because suppression of a defective Enter must
// happen synchronously, in capture phase, before the chat app's own
// listeners see the event. Every constant it uses (delays, message names,
// bridge prefix, synthetic marker) is interpolated from the Go definitions
// so the two sides cannot drift.

// syntheticMark is the property the probe sets on its own clear events so
// its keydown listener can ignore them while the chat app still sees them.
const syntheticMark = "__chatdockSynthetic"

// jsonString returns a JSON-encoded string literal for safe JS embedding.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// sendJS defines __cdSend(name, payload): best-effort post over the native
// message bridge, trying the Wails runtime, then the platform handlers.
// Failure is a caught no-op; the page must never block or throw on a dead
// channel.
func sendJS() string {
	return fmt.Sprintf(`function __cdSend(n,p){var m=%s+JSON.stringify({name:n,payload:p||""});try{if(window._wails&&window._wails.invoke){window._wails.invoke(m)}else if(window.webkit&&window.webkit.messageHandlers&&window.webkit.messageHandlers.external){window.webkit.messageHandlers.external.postMessage(m)}else if(window.chrome&&window.chrome.webview){window.chrome.webview.postMessage(m)}}catch(e){}}`,
		jsonString(BridgePrefix))
}

// BuildProbeJS returns the content-side script: capture-phase composition
// and keydown listeners plus the clear-timer machinery. When forwardLogs is
// set, console.log lines are mirrored to the host over the channel.
func BuildProbeJS(forwardLogs bool) string {
	logHook := ""
	if forwardLogs {
		logHook = fmt.Sprintf(`
  var __origLog=console.log;
  console.log=function(){try{__cdSend(%s,Array.prototype.slice.call(arguments).join(" "))}catch(e){};return __origLog.apply(console,arguments)};`,
			jsonString(MsgConsoleLog))
	}

	return fmt.Sprintf(`(function(){
  if(window.__chatdockProbe)return;
  window.__chatdockProbe=true;
  %s%s
  var composing=false,fixOpen=false,clearTimer=null,syntheticInFlight=false;

  function dispatchEnterPair(){
    var el=document.activeElement||document.body;
    syntheticInFlight=true;
    try{
      var init={key:"Enter",code:"Enter",keyCode:13,which:13,bubbles:true,cancelable:true};
      var down=new KeyboardEvent("keydown",init);down.%s=true;
      var up=new KeyboardEvent("keyup",init);up.%s=true;
      el.dispatchEvent(down);
      el.dispatchEvent(up);
    }finally{syntheticInFlight=false}
  }

  document.addEventListener("compositionstart",function(){composing=true},true);

  document.addEventListener("compositionend",function(){
    composing=false;
    if(clearTimer)clearTimeout(clearTimer);
    clearTimer=setTimeout(function(){clearTimer=null;dispatchEnterPair()},%d);
  },true);

  document.addEventListener("keydown",function(e){
    if(e.key!=="Enter"||e.shiftKey)return;
    if(syntheticInFlight||e.%s)return;
    if(clearTimer&&e.isTrusted){clearTimeout(clearTimer);clearTimer=null;return}
    if(e.isComposing&&!composing&&!fixOpen){
      e.stopImmediatePropagation();
      e.preventDefault();
      fixOpen=true;
      setTimeout(function(){fixOpen=false},%d);
      __cdSend(%s,"enter");
    }
  },true);
})();`,
		sendJS(), logHook,
		syntheticMark, syntheticMark,
		ClearDelay.Milliseconds(),
		syntheticMark,
		FixWindow.Milliseconds(),
		jsonString(MsgEnterFix))
}

// composerSelector matches the chat app's editable input surface.
const composerSelector = `textarea, [contenteditable="true"], input[type="text"]`

// FocusComposerJS returns a script that focuses the composer element. The
// shell runs it after the window regains foreground focus so synthetic
// dispatch always has a target.
func FocusComposerJS() string {
	return fmt.Sprintf(`(function(){var el=document.querySelector(%s);if(el)el.focus()})();`,
		jsonString(composerSelector))
}

// ReadyProbeJS returns a script that polls for an editable composer and
// posts composerReady once, so the shell knows when to drop its loading
// overlay. Outside the fix path entirely.
func ReadyProbeJS() string {
	return fmt.Sprintf(`(function(){
  if(window.__chatdockReady)return;
  window.__chatdockReady=true;
  %s
  var iv=setInterval(function(){
    if(document.querySelector(%s)){clearInterval(iv);__cdSend(%s,location.href)}
  },250);
})();`,
		sendJS(), jsonString(composerSelector), jsonString(MsgComposerReady))
}
