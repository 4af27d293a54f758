package pwdom

// runtimeJS is the in-page runtime the adapter drives through Evaluate. It
// keeps a ref registry for element identity, MutationObserver-backed
// watchers, capture-phase interception scopes, and a queue the Go side
// drains on every poll tick. Guarded so re-injection after navigation is a
// no-op while the runtime is alive.
const runtimeJS = `(() => {
	if (window.__plst) return;

	const state = {
		nextRef: 1,
		refs: new Map(),
		queue: [],
		attrWatches: new Map(),
		childWatches: new Map(),
		scopes: new Map(),
	};

	const refOf = (el) => {
		if (!el.__plstRef) {
			el.__plstRef = String(state.nextRef++);
			state.refs.set(el.__plstRef, el);
		}
		return el.__plstRef;
	};
	const get = (ref) => state.refs.get(ref) || null;
	const root = (ref) => ref ? get(ref) : document;

	const collectText = (el) => {
		const lines = [];
		const walk = (node) => {
			if (node.nodeType === Node.TEXT_NODE) {
				const text = node.data.trim();
				if (text) lines.push(text);
				return;
			}
			for (const child of node.childNodes) walk(child);
		};
		walk(el);
		return lines.join('\n');
	};

	window.__plst = {
		query: (rootRef, sel) => {
			const r = root(rootRef);
			if (!r) return null;
			const el = r.querySelector(sel);
			return el ? refOf(el) : null;
		},
		queryAll: (rootRef, sel) => {
			const r = root(rootRef);
			if (!r) return [];
			return Array.from(r.querySelectorAll(sel)).map(refOf);
		},
		createElement: (tag) => refOf(document.createElement(tag)),

		tag: (ref) => {
			const el = get(ref);
			return el ? el.tagName.toLowerCase() : '';
		},
		attr: (ref, name) => {
			const el = get(ref);
			if (!el) return null;
			const v = el.getAttribute(name);
			return v === null ? null : { value: v };
		},
		setAttr: (ref, name, value) => {
			const el = get(ref);
			if (!el) return false;
			el.setAttribute(name, value);
			return true;
		},
		removeAttr: (ref, name) => {
			const el = get(ref);
			if (!el) return false;
			el.removeAttribute(name);
			return true;
		},
		text: (ref) => {
			const el = get(ref);
			return el ? collectText(el) : '';
		},
		setText: (ref, text) => {
			const el = get(ref);
			if (!el) return false;
			el.textContent = text;
			return true;
		},
		parent: (ref) => {
			const el = get(ref);
			return el && el.parentElement ? refOf(el.parentElement) : null;
		},
		setStyle: (ref, prop, value) => {
			const el = get(ref);
			if (!el) return false;
			el.style.setProperty(prop, value, 'important');
			return true;
		},
		removeStyle: (ref, prop) => {
			const el = get(ref);
			if (!el) return false;
			el.style.removeProperty(prop);
			return true;
		},
		click: (ref) => {
			const el = get(ref);
			if (!el || !document.contains(el)) return false;
			el.click();
			return true;
		},
		append: (parentRef, childRef) => {
			const p = get(parentRef);
			const c = get(childRef);
			if (!p || !c) return false;
			p.appendChild(c);
			return true;
		},
		remove: (ref) => {
			const el = get(ref);
			if (!el || !el.parentNode) return false;
			el.remove();
			return true;
		},
		attached: (ref) => {
			const el = get(ref);
			return !!el && document.contains(el);
		},

		watchAttrs: (id, ref, names) => {
			const el = get(ref);
			if (!el) return false;
			const obs = new MutationObserver((muts) => {
				for (const m of muts) {
					if (m.type !== 'attributes') continue;
					state.queue.push({
						kind: 'attr',
						id: id,
						name: m.attributeName,
						value: m.target.getAttribute(m.attributeName) ?? '',
					});
				}
			});
			obs.observe(el, { attributes: true, attributeFilter: names });
			state.attrWatches.set(id, obs);
			return true;
		},
		unwatchAttrs: (id) => {
			const obs = state.attrWatches.get(id);
			if (obs) obs.disconnect();
			state.attrWatches.delete(id);
		},

		watchChildren: (id, ref) => {
			const el = get(ref);
			if (!el) return false;
			const obs = new MutationObserver((muts) => {
				const added = [];
				for (const m of muts) {
					for (const node of m.addedNodes) {
						if (node.nodeType === Node.ELEMENT_NODE) added.push(refOf(node));
					}
				}
				if (added.length) {
					state.queue.push({ kind: 'child', id: id, refs: added });
				}
			});
			obs.observe(el, { childList: true, subtree: true });
			state.childWatches.set(id, obs);
			return true;
		},
		unwatchChildren: (id) => {
			const obs = state.childWatches.get(id);
			if (obs) obs.disconnect();
			state.childWatches.delete(id);
		},

		intercept: (id, ref, types, passAttr) => {
			const scopeRoot = get(ref);
			if (!scopeRoot) return false;
			const handler = (ev) => {
				const t = ev.target;
				if (!(t instanceof Element)) return;
				if (!scopeRoot.contains(t)) return;
				if (passAttr && t.closest('[' + passAttr + ']')) return;
				ev.stopImmediatePropagation();
				if (ev.type === 'click') ev.preventDefault();
				state.queue.push({
					kind: 'event',
					id: id,
					type: ev.type,
					targetRef: refOf(t),
					key: ev.key || '',
					value: t.value !== undefined ? String(t.value) : '',
				});
			};
			for (const tp of types) {
				document.addEventListener(tp, handler, true);
			}
			state.scopes.set(id, { handler: handler, types: types });
			return true;
		},
		revokeIntercept: (id) => {
			const scope = state.scopes.get(id);
			if (scope) {
				for (const tp of scope.types) {
					document.removeEventListener(tp, scope.handler, true);
				}
			}
			state.scopes.delete(id);
		},

		drain: () => {
			const q = state.queue;
			state.queue = [];
			return q;
		},
	};
})()`
