// internal/browser/session/scripts.go
package session

// Every script is a function expression. Callers invoke it with a single JSON
// argument: (script)(payload).

// clickScript looks up the step target, marks it, and dispatches the events.
// It returns {status, tag, message}.
const clickScript = `(function (spec) {
  var el, x, y;
  var bySelector = typeof spec.selector === "string";
  if (bySelector) {
    try {
      el = document.querySelector(spec.selector);
    } catch (e) {
      return { status: "not_found", message: String(e && e.message || e) };
    }
    if (!el) return { status: "not_found" };
  } else {
    x = spec.point.x;
    y = spec.point.y;
    el = document.elementFromPoint(x, y);
    if (!el) return { status: "no_element" };
  }

  try {
    if (bySelector) {
      el.scrollIntoView({ behavior: "smooth", block: "center" });
      if (spec.highlight) {
        var original = el.style.outline;
        el.style.outline = spec.highlight.style;
        setTimeout(function () { el.style.outline = original; }, spec.highlight.durationMs);
      }
      x = 0;
      y = 0;
      if (typeof el.getBoundingClientRect === "function") {
        var r = el.getBoundingClientRect();
        x = r.left + r.width / 2;
        y = r.top + r.height / 2;
      }
    } else if (spec.indicator) {
      var d = spec.indicator;
      var dot = document.createElement("div");
      Object.assign(dot.style, {
        position: "fixed",
        left: (x - d.size / 2) + "px",
        top: (y - d.size / 2) + "px",
        width: d.size + "px",
        height: d.size + "px",
        borderRadius: "50%",
        backgroundColor: d.color,
        zIndex: "999999",
        pointerEvents: "none"
      });
      (document.body || document.documentElement).appendChild(dot);
      setTimeout(function () { dot.remove(); }, d.durationMs);
    }

    spec.events.forEach(function (ev) {
      el.dispatchEvent(new MouseEvent(ev.type, {
        view: window,
        bubbles: ev.bubbles,
        cancelable: ev.cancelable,
        buttons: ev.buttons,
        clientX: bySelector ? x : ev.clientX,
        clientY: bySelector ? y : ev.clientY
      }));
    });
    return { status: "ok", tag: el.tagName.toLowerCase() };
  } catch (e) {
    return { status: "dispatch_error", message: String(e && e.message || e) };
  }
})`

// pickerInstallScript adds the capture-phase observers for one picking
// session and tags event targets with a ref attribute. Installing again
// replaces the previous observers.
const pickerInstallScript = `(function (cfg) {
  if (window.__clickseqPicker) window.__clickseqPicker.teardown();
  var seq = 0;
  var saved = new Map();
  var ref = function (el) {
    if (!el.hasAttribute(cfg.refAttr)) el.setAttribute(cfg.refAttr, String(++seq));
    return el.getAttribute(cfg.refAttr);
  };
  var send = function (ev) {
    var fn = window[cfg.binding];
    if (typeof fn === "function") fn(JSON.stringify(ev));
  };
  var onOver = function (e) {
    e.stopPropagation();
    if (e.target instanceof Element) send({ kind: "hover", ref: ref(e.target) });
  };
  var onClick = function (e) {
    e.preventDefault();
    e.stopPropagation();
    if (e.target instanceof Element) send({ kind: "click", ref: ref(e.target) });
  };
  var onKey = function (e) {
    send({ kind: "key", key: e.key });
  };
  document.addEventListener("mouseover", onOver, true);
  document.addEventListener("click", onClick, true);
  document.addEventListener("keydown", onKey, true);

  window.__clickseqPicker = {
    saved: saved,
    teardown: function () {
      document.removeEventListener("mouseover", onOver, true);
      document.removeEventListener("click", onClick, true);
      document.removeEventListener("keydown", onKey, true);
      saved.forEach(function (outline, el) { el.style.outline = outline; });
      saved.clear();
      document.querySelectorAll("[" + cfg.refAttr + "]").forEach(function (el) {
        el.removeAttribute(cfg.refAttr);
      });
      delete window.__clickseqPicker;
    }
  };
  return true;
})`

// pickerRemoveScript tears the observers down. It is idempotent.
const pickerRemoveScript = `(function () {
  if (window.__clickseqPicker) window.__clickseqPicker.teardown();
  return true;
})`

// outlineScript applies an outline to the element with the given ref, or
// restores its own outline when style is empty.
const outlineScript = `(function (a) {
  var p = window.__clickseqPicker;
  var el = document.querySelector("[" + a.refAttr + "=\"" + CSS.escape(a.ref) + "\"]");
  if (!el) return false;
  if (a.style) {
    if (p && !p.saved.has(el)) p.saved.set(el, el.style.outline);
    el.style.outline = a.style;
  } else {
    el.style.outline = p && p.saved.has(el) ? p.saved.get(el) : "";
    if (p) p.saved.delete(el);
  }
  return true;
})`

// toastScript shows a message in the top right corner. A zero duration
// keeps it until the next toast replaces it.
const toastScript = `(function (t) {
  var old = document.getElementById(t.id);
  if (old) old.remove();
  var div = document.createElement("div");
  div.id = t.id;
  div.textContent = t.text;
  Object.assign(div.style, {
    position: "fixed",
    top: "10px",
    right: "10px",
    backgroundColor: "rgba(0,0,0,0.8)",
    color: "#fff",
    padding: "10px 20px",
    borderRadius: "5px",
    zIndex: "9999999",
    fontSize: "14px",
    fontFamily: "sans-serif",
    pointerEvents: "none"
  });
  (document.body || document.documentElement).appendChild(div);
  if (t.durationMs > 0) setTimeout(function () { div.remove(); }, t.durationMs);
  return true;
})`

// snapshotScript returns the serialized document.
const snapshotScript = `(function () {
  return document.documentElement ? document.documentElement.outerHTML : "";
})`
