package browser

import "fmt"

// In-page scripts. Each one returns a JSON-serializable value so Evaluate
// never sees undefined.

const scriptHelpers = `
const textOf = el => ((el && el.textContent) || '').trim();
const firstText = (root, sels) => {
  for (const s of sels) {
    const t = textOf(root.querySelector(s));
    if (t) return t;
  }
  return '';
};`

var scalarScript = fmt.Sprintf(`(() => {%s
  const cascades = %s;
  const out = {};
  for (const c of cascades) {
    let value = '';
    for (const s of c.strategies) {
      try {
        if (s.kind === 'text') {
          value = textOf(document.querySelector(s.selector));
        } else if (s.kind === 'attr') {
          const el = document.querySelector(s.selector);
          value = el ? (el.getAttribute(s.attr) || '').trim() : '';
        } else if (s.kind === 'match') {
          const re = new RegExp(s.pattern, 'i');
          for (const el of document.querySelectorAll(s.selector)) {
            const t = textOf(el);
            if (t && re.test(t)) { value = t; break; }
          }
        }
      } catch (e) {
        value = '';
      }
      if (value) break;
    }
    out[c.field] = value;
  }
  return out;
})()`, scriptHelpers, mustJSON(scalarCascades))

const consentScript = `(() => {
  for (const b of document.querySelectorAll('button')) {
    if (/^accept all$/i.test((b.textContent || '').trim())) { b.click(); return true; }
  }
  const form = document.querySelector('form[action*="consent"] button');
  if (form) { form.click(); return true; }
  return false;
})()`

const firstResultScript = `(() => {
  const first = document.querySelector('[role="feed"] > div a, .Nv2PK a, a[href*="/maps/place/"]');
  if (first) { first.click(); return true; }
  return false;
})()`

// openReviewsScript returns the name of the strategy that clicked, or "".
const openReviewsScript = `(() => {
  for (const el of document.querySelectorAll('[role="tab"], button')) {
    if (/^reviews$/i.test((el.textContent || '').trim())) { el.click(); return 'text'; }
  }
  const aria = document.querySelector('[role="tab"][aria-label*="review" i], button[aria-label*="review" i]');
  if (aria) { aria.click(); return 'aria-label'; }
  const js = document.querySelector('[jsaction*="review"]');
  if (js) { js.click(); return 'jsaction'; }
  const star = document.querySelector('[role="img"][aria-label*="star"]');
  if (star) { star.click(); return 'star'; }
  return '';
})()`

const reviewContainerJS = `document.querySelector('.m6QErb.DxyBCb') ||
    document.querySelector('.m6QErb.XiKgde') ||
    document.querySelector('[tabindex="-1"].m6QErb')`

var reviewsReadyScript = fmt.Sprintf(`(() => {
  const container = %s;
  return {
    count: document.querySelectorAll('[data-review-id], .jftiEf').length,
    height: container ? container.scrollHeight : 0,
  };
})()`, reviewContainerJS)

var scrollReviewsScript = fmt.Sprintf(`(() => {
  const container = %s;
  if (!container) return false;
  container.scrollTop = container.scrollHeight;
  return true;
})()`, reviewContainerJS)

const expandReviewsScript = `(() => {
  let clicked = 0;
  document.querySelectorAll('button.w8nwRe, button.M77dve').forEach(b => { b.click(); clicked++; });
  document.querySelectorAll('button').forEach(b => {
    if (/^more$/i.test((b.textContent || '').trim())) { b.click(); clicked++; }
  });
  return clicked;
})()`

var extractReviewsScript = fmt.Sprintf(`(() => {%s
  const out = [];
  document.querySelectorAll('[data-review-id], .jftiEf').forEach(el => {
    const author = firstText(el, ['.d4r55', '.WNxzHc button', '.TSUbDb']) ||
      (el.getAttribute('aria-label') || '').trim();
    let ratingLabel = '';
    for (const s of ['[role="img"][aria-label*="star"]', '.kvMYJc', 'span[aria-label*="star"]']) {
      const r = el.querySelector(s);
      ratingLabel = r ? (r.getAttribute('aria-label') || '') : '';
      if (ratingLabel) break;
    }
    if (!ratingLabel) ratingLabel = firstText(el, ['.fzvQIb']);
    const date = firstText(el, ['.rsqaWe', '.xRkPPb', '.DU9Pgb']);
    let text = firstText(el, ['.wiI7pd', '.MyEned', '[data-expandable-section] span']);
    if (!text) {
      const star = el.querySelector('[role="img"][aria-label*="star"]');
      const scope = (star && star.parentElement && star.parentElement.parentElement) || el;
      let best = '';
      scope.querySelectorAll('span, div').forEach(n => {
        if (n.children.length !== 0) return;
        const t = textOf(n);
        if (t.length > best.length && t !== author && t !== date) best = t;
      });
      text = best;
    }
    out.push({ author, ratingLabel, date, text });
  });
  return out;
})()`, scriptHelpers)

const openSortScript = `(() => {
  const sort = document.querySelector('[aria-label*="Sort"], button[data-value="sort"]');
  if (sort) { sort.click(); return true; }
  for (const b of document.querySelectorAll('button')) {
    if (/most relevant|sort/i.test(b.textContent || '')) { b.click(); return true; }
  }
  return false;
})()`

const selectLowestScript = `(() => {
  for (const el of document.querySelectorAll('[role="menuitemradio"], [data-index]')) {
    if (/lowest/i.test(el.textContent || '')) { el.click(); return true; }
  }
  return false;
})()`
