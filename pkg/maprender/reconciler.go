package maprender

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/config"
	"github.com/see2code/transport-platform/pkg/tracking"
)

// Renderer reconciles published vehicle lists onto a Surface: it removes
// departed markers, creates new ones in place and glides existing ones to
// their new position over a fixed number of animation frames.
//
// The renderer owns the marker registry, nothing else mutates it.
type Renderer struct {
	cfg            config.RenderConfig
	activityWindow time.Duration
	surface        Surface

	mu      sync.Mutex
	markers map[string]*markerState
	hidden  map[string]struct{}
	last    []tracking.Vehicle

	done     chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

func NewRenderer(surface Surface, cfg config.RenderConfig, activityWindow time.Duration) *Renderer {
	return &Renderer{
		cfg:            cfg,
		activityWindow: activityWindow,
		surface:        surface,
		markers:        map[string]*markerState{},
		hidden:         map[string]struct{}{},
		done:           make(chan struct{}),
		now:            time.Now,
	}
}

// Start runs the periodic re-render, covering staleness of an unchanged
// vehicle list.
func (r *Renderer) Start() {
	go func() {
		ticker := time.NewTicker(r.cfg.RefreshInterval())
		defer ticker.Stop()

		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.mu.Lock()
				last := make([]tracking.Vehicle, len(r.last))
				copy(last, r.last)
				r.mu.Unlock()

				r.Reconcile(last)
			}
		}
	}()
}

// Stop cancels the refresh loop and all in-flight interpolations.
// Idempotent.
func (r *Renderer) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)

		r.mu.Lock()
		defer r.mu.Unlock()

		for _, marker := range r.markers {
			if marker.task != nil {
				marker.task.stop()
			}
		}
	})
}

// SetHiddenVehicles replaces the set of vehicle ids excluded from rendering.
// Takes effect on the next reconciliation.
func (r *Renderer) SetHiddenVehicles(ids []string) {
	hidden := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		hidden[id] = struct{}{}
	}

	r.mu.Lock()
	r.hidden = hidden
	r.mu.Unlock()
}

// PanToVehicle recenters the viewport on a vehicle, shifted horizontally by
// pixelOffsetX.
func (r *Renderer) PanToVehicle(vehicle tracking.Vehicle, pixelOffsetX int) {
	if err := r.surface.Pan(vehicle.Location.Latitude, vehicle.Location.Longitude, pixelOffsetX); err != nil {
		log.Warn().Err(err).Str("vehicle", vehicle.ID).Msg("Failed to pan to vehicle")
	}
}

// Reconcile applies a published vehicle list to the surface.
func (r *Renderer) Reconcile(vehicles []tracking.Vehicle) {
	now := r.now()

	r.mu.Lock()

	r.last = make([]tracking.Vehicle, len(vehicles))
	copy(r.last, vehicles)

	// The activity window check mirrors the reaper's policy. Applied again
	// here so a stale entry in an unchanged list still drops out visually
	active := map[string]tracking.Vehicle{}
	for _, vehicle := range vehicles {
		if vehicle.Location == (tracking.Position{}) {
			continue
		}
		if _, isHidden := r.hidden[vehicle.ID]; isHidden {
			continue
		}
		if !vehicle.IsActive(now, r.activityWindow) {
			continue
		}
		active[vehicle.ID] = vehicle
	}

	for id, marker := range r.markers {
		if _, stillActive := active[id]; stillActive {
			continue
		}

		if marker.task != nil {
			marker.task.stop()
		}
		delete(r.markers, id)

		if err := r.surface.RemoveMarker(id); err != nil {
			log.Warn().Err(err).Str("vehicle", id).Msg("Failed to remove marker")
		}
	}

	for id, vehicle := range active {
		r.applyVehicle(id, vehicle)
	}

	// A single active vehicle keeps the viewport on itself. With more than
	// one the user's pan and zoom win
	if len(active) == 1 {
		for _, vehicle := range active {
			if err := r.surface.Center(vehicle.Location.Latitude, vehicle.Location.Longitude); err != nil {
				log.Warn().Err(err).Str("vehicle", vehicle.ID).Msg("Failed to center map")
			}
		}
	}

	r.mu.Unlock()
}

// applyVehicle creates or updates one marker. Called with r.mu held.
func (r *Renderer) applyVehicle(id string, vehicle tracking.Vehicle) {
	target := vehicle.Location

	marker, exists := r.markers[id]
	if !exists {
		marker = &markerState{
			latitude:  target.Latitude,
			longitude: target.Longitude,
		}
		if target.Heading != nil {
			marker.rotation = *target.Heading
		}
		r.markers[id] = marker

		// New markers appear in place, only moves are animated
		if err := r.surface.CreateMarker(id, target.Latitude, target.Longitude, target.Heading); err != nil {
			log.Warn().Err(err).Str("vehicle", id).Msg("Failed to create marker")
		}
		return
	}

	// Rotation snaps immediately, independent of the position glide. A
	// missing heading just leaves the previous rotation alone
	if target.Heading != nil && *target.Heading != marker.rotation {
		marker.rotation = *target.Heading
		if err := r.surface.RotateMarker(id, marker.rotation); err != nil {
			log.Warn().Err(err).Str("vehicle", id).Msg("Failed to rotate marker")
		}
	}

	if marker.latitude == target.Latitude && marker.longitude == target.Longitude {
		return
	}

	task := marker.supersedeTask()
	go r.animate(id, task, target.Latitude, target.Longitude)
}

// animate glides a marker from its current rendered position to the target
// across a fixed number of frames. A superseding target cancels the task, the
// replacement restarts from wherever the marker currently is.
func (r *Renderer) animate(id string, task *interpolationTask, targetLat float64, targetLng float64) {
	r.mu.Lock()
	marker, exists := r.markers[id]
	if !exists {
		r.mu.Unlock()
		return
	}
	startLat := marker.latitude
	startLng := marker.longitude
	r.mu.Unlock()

	steps := r.cfg.AnimationSteps
	deltaLat := (targetLat - startLat) / float64(steps)
	deltaLng := (targetLng - startLng) / float64(steps)

	ticker := time.NewTicker(r.cfg.FrameInterval())
	defer ticker.Stop()

	for step := 1; step <= steps; step++ {
		select {
		case <-task.cancel:
			return
		case <-ticker.C:
		}

		lat := startLat + deltaLat*float64(step)
		lng := startLng + deltaLng*float64(step)
		if step == steps {
			lat = targetLat
			lng = targetLng
		}

		r.mu.Lock()
		marker, exists := r.markers[id]
		if !exists || marker.task != task {
			r.mu.Unlock()
			return
		}
		marker.latitude = lat
		marker.longitude = lng
		r.mu.Unlock()

		if err := r.surface.MoveMarker(id, lat, lng); err != nil {
			log.Warn().Err(err).Str("vehicle", id).Msg("Failed to move marker")
		}
	}
}

// MarkerPosition returns the current rendered position of a marker, mainly
// for diagnostics.
func (r *Renderer) MarkerPosition(id string) (float64, float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marker, exists := r.markers[id]
	if !exists {
		return 0, 0, false
	}

	return marker.latitude, marker.longitude, true
}
