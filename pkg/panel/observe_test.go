package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/panelist/pkg/logging"
)

func newTestObserver(t *testing.T, f *engineFixture) *Observer {
	t.Helper()
	obs := NewObserver(f.doc, f.profile, f.manager, f.sched, logging.Nop())
	t.Cleanup(obs.Stop)
	return obs
}

// expireRescan makes the bounded rescan terminate on its next tick.
func expireRescan(obs *Observer) {
	obs.now = func() time.Time { return time.Now().Add(time.Hour) }
}

func TestObserverIdleOnUnwatchedPage(t *testing.T) {
	f := newEngineFixture(t, panelFixture)
	f.doc.SetURL("https://example.com/")
	obs := newTestObserver(t, f)

	obs.Start()

	assert.Equal(t, 0, obs.TrackedContainers())
	assert.Equal(t, 0, f.sched.pendingCount())
}

func TestObserverAttachesWhenContainerOpens(t *testing.T) {
	f := newEngineFixture(t, panelFixture)
	obs := newTestObserver(t, f)

	obs.Start()
	expireRescan(obs)
	require.Equal(t, 1, obs.TrackedContainers())
	assert.False(t, f.manager.Active())

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))

	f.sched.runAll()
	assert.True(t, f.manager.Active())
}

func TestObserverHandlesAlreadyOpenContainer(t *testing.T) {
	f := newEngineFixture(t, panelFixture)
	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))

	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)
	f.sched.runAll()

	assert.True(t, f.manager.Active())
}

func TestObserverKeepsSessionThroughClosingSignal(t *testing.T) {
	f := newEngineFixture(t, panelFixture)
	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))
	f.sched.runAll()
	require.True(t, f.manager.Active())
	first := f.manager.ActiveSession().ID

	// The closing signal triggers no teardown; the host may be mid-swap.
	require.NoError(t, dialog.SetAttr("aria-hidden", "true"))
	assert.True(t, f.manager.Active())
	assert.Equal(t, first, f.manager.ActiveSession().ID)

	// Reopening builds a fresh session for the same container.
	require.NoError(t, dialog.SetAttr("aria-hidden", "false"))
	f.sched.runAll()
	require.True(t, f.manager.Active())
	assert.NotEqual(t, first, f.manager.ActiveSession().ID)
}

func TestObserverDefersIndeterminateOnce(t *testing.T) {
	f := newEngineFixture(t, `<html><body>
		<tp-yt-paper-dialog>
			<ytd-add-to-playlist-renderer>
				<div id="title">Save video to...</div>
			</ytd-add-to-playlist-renderer>
		</tp-yt-paper-dialog>
	</body></html>`)
	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))
	assert.False(t, f.manager.Active())

	// The list streams in before the re-check fires.
	_, err := f.doc.AppendHTML(f.panel, `<div id="playlists">
		<ytd-playlist-add-to-option-renderer>
			<tp-yt-paper-checkbox aria-checked="false"></tp-yt-paper-checkbox>
			<div class="label">Mix</div>
		</ytd-playlist-add-to-option-renderer>
	</div>`)
	require.NoError(t, err)

	f.sched.runAll()
	assert.True(t, f.manager.Active())
}

func TestObserverForcesDecisionAfterSecondIndeterminate(t *testing.T) {
	f := newEngineFixture(t, `<html><body>
		<tp-yt-paper-dialog>
			<ytd-add-to-playlist-renderer>
				<div id="title">Save video to...</div>
			</ytd-add-to-playlist-renderer>
		</tp-yt-paper-dialog>
	</body></html>`)
	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))

	// Nothing else renders. The single deferral runs, the forced decision
	// rejects, and no further re-checks pile up.
	f.sched.runAll()
	assert.False(t, f.manager.Active())
	assert.Equal(t, 0, f.sched.pendingCount())
}

func TestObserverFallbackWhenCandidateRendersLate(t *testing.T) {
	f := newEngineFixture(t, `<html><body>
		<tp-yt-paper-dialog></tp-yt-paper-dialog>
	</body></html>`)
	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))
	assert.False(t, f.manager.Active())

	// The panel renders into the container before the fallback re-check.
	_, err := f.doc.AppendHTML(dialog, `<ytd-add-to-playlist-renderer>
		<div id="title">Save video to...</div>
		<div id="playlists">
			<ytd-playlist-add-to-option-renderer>
				<tp-yt-paper-checkbox aria-checked="false"></tp-yt-paper-checkbox>
				<div class="label">Mix</div>
			</ytd-playlist-add-to-option-renderer>
		</div>
	</ytd-add-to-playlist-renderer>`)
	require.NoError(t, err)

	f.sched.runAll()
	assert.True(t, f.manager.Active())
}

func TestObserverFallbackIsBounded(t *testing.T) {
	f := newEngineFixture(t, `<html><body>
		<tp-yt-paper-dialog></tp-yt-paper-dialog>
	</body></html>`)
	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))

	f.sched.runAll()
	assert.False(t, f.manager.Active())
	assert.Equal(t, 0, f.sched.pendingCount())
}

func TestObserverRejectsContextMenuVariant(t *testing.T) {
	f := newEngineFixture(t, contextMenuFixture)
	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))

	f.sched.runAll()
	assert.False(t, f.manager.Active())
}

func TestObserverScrubsResidueOnNoMatch(t *testing.T) {
	f := newEngineFixture(t, contextMenuFixture)
	// Stale markers from a previous session on the recycled container.
	require.NoError(t, f.panel.SetAttr(attrProcessed, "1"))

	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))
	f.sched.runAll()

	_, marked := f.panel.Attr(attrProcessed)
	assert.False(t, marked)
	assert.False(t, f.manager.Active())
}

func TestObserverRescanFindsLateContainers(t *testing.T) {
	f := newEngineFixture(t, `<html><body><div id="app"></div></body></html>`)
	obs := newTestObserver(t, f)
	obs.Start()
	require.Equal(t, 0, obs.TrackedContainers())

	app, ok := f.doc.Query("#app")
	require.True(t, ok)
	_, err := f.doc.AppendHTML(app, `<tp-yt-paper-dialog opened="true">
		<ytd-add-to-playlist-renderer>
			<div id="title">Save video to...</div>
			<div id="playlists">
				<ytd-playlist-add-to-option-renderer>
					<tp-yt-paper-checkbox aria-checked="false"></tp-yt-paper-checkbox>
					<div class="label">Mix</div>
				</ytd-playlist-add-to-option-renderer>
			</div>
		</ytd-add-to-playlist-renderer>
	</tp-yt-paper-dialog>`)
	require.NoError(t, err)

	// Next rescan tick picks the container up and, since it is already
	// open, evaluation starts immediately.
	require.True(t, f.sched.runNext())
	assert.Equal(t, 1, obs.TrackedContainers())

	expireRescan(obs)
	f.sched.runAll()
	assert.True(t, f.manager.Active())
}

func TestObserverRescanWindowExpires(t *testing.T) {
	f := newEngineFixture(t, `<html><body></body></html>`)
	obs := newTestObserver(t, f)
	obs.Start()
	require.Equal(t, 1, f.sched.pendingCount())

	expireRescan(obs)
	f.sched.runAll()
	assert.Equal(t, 0, f.sched.pendingCount())
}

func TestObserverStopTearsEverythingDown(t *testing.T) {
	f := newEngineFixture(t, panelFixture)
	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))
	f.sched.runAll()
	require.True(t, f.manager.Active())

	obs.Stop()

	assert.False(t, f.manager.Active())
	assert.Equal(t, 0, obs.TrackedContainers())
	_, marked := f.panel.Attr(attrProcessed)
	assert.False(t, marked)

	// Watchers are gone: reopening does nothing.
	require.NoError(t, dialog.SetAttr("opened", "false"))
	require.NoError(t, dialog.SetAttr("opened", "true"))
	f.sched.runAll()
	assert.False(t, f.manager.Active())
}

func TestObserverHandleNavigation(t *testing.T) {
	f := newEngineFixture(t, panelFixture)
	obs := newTestObserver(t, f)
	obs.Start()
	expireRescan(obs)

	dialog, ok := f.doc.Query("tp-yt-paper-dialog")
	require.True(t, ok)
	require.NoError(t, dialog.SetAttr("opened", "true"))
	f.sched.runAll()
	require.True(t, f.manager.Active())

	// Navigating away force-tears-down the session and stops tracking.
	f.doc.SetURL("https://example.com/")
	obs.HandleNavigation("https://example.com/")
	assert.False(t, f.manager.Active())
	assert.Equal(t, 0, obs.TrackedContainers())

	// Navigating back restarts observation.
	f.doc.SetURL("https://www.youtube.com/watch?v=next")
	obs.HandleNavigation("https://www.youtube.com/watch?v=next")
	assert.Equal(t, 1, obs.TrackedContainers())
}
