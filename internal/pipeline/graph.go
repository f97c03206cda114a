// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package pipeline assembles the ingestion workflow: its graph, the
// steps bound to it, the failure compensator and the success finalizer.
package pipeline

import (
	"fmt"
	"time"

	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/steps"
	"github.com/cardinalhq/mediarunner/internal/workflow"
)

// State names.
const (
	StateIngest          = "Ingest"
	StateSuccess         = "Success"
	StateProcessFailure  = "ProcessFailure"
	StateFailureTerminal = "FailureTerminal"

	StateRejectEmptyFiles       = "RejectEmptyFiles"
	StateCheckIfSpecial         = "CheckIfSpecial"
	StateProcessSpecialFile     = "ProcessSpecialFile"
	StateMetadataChecks         = "MetadataChecks"
	StateCheckCatalogForItem    = "CheckCatalogForItem"
	StateDownloadMedia          = "DownloadMedia"
	StateCheckIfConsumed        = "CheckIfConsumed"
	StateDetectAndValidateMedia = "DetectAndValidateMedia"
	StateCheckMetadataReady     = "CheckMetadataReady"
	StateCheckIfDamsmart        = "CheckIfDamsmart"
	StateMediaTypeChoice        = "MediaTypeChoice"
	StateTranscodeAudio         = "TranscodeAudio"
	StateExtractAudioMetadata   = "ExtractAudioMetadata"
	StateTranscodeVideo         = "TranscodeVideo"
	StateExtractVideoMetadata   = "ExtractVideoMetadata"
	StateConvertImage           = "ConvertImage"
	StateExtractImageMetadata   = "ExtractImageMetadata"
	StateExtractOtherMetadata   = "ExtractOtherMetadata"
	StateUnsupportedMediaType   = "UnsupportedMediaType"
	StateAddToCatalog           = "AddToCatalog"
	StateProcessSuccess         = "ProcessSuccess"

	StateDamsmartInit           = "DamsmartInit"
	StateCheckDamsmartCompanion = "CheckDamsmartCompanion"
	StateDamsmartOutcome        = "DamsmartOutcome"
	StateDamsmartRetryLimit     = "DamsmartRetryLimit"
	StateDamsmartIncrement      = "DamsmartIncrement"
	StateDamsmartWait           = "DamsmartWait"
	StateRetryLimitExceeded     = "RetryLimitExceeded"
	StateDamsmartFanOut         = "DamsmartFanOut"
	StatePrepareCompanion       = "PrepareCompanion"
)

// Condition and join names.
const (
	condIsSpecial         = "isSpecial"
	condIsDamsmart        = "isDamsmart"
	condRetryLimitReached = "retryLimitReached"
	condOutcomeWait       = "outcome.wait"
	condOutcomeDone       = "outcome.companionDone"
	condOutcomePair       = "outcome.catalogPair"
	condAudio             = "mediaType.audio"
	condVideo             = "mediaType.video"
	condImage             = "mediaType.image"
	condOther             = "mediaType.other"
	joinPair              = "joinPair"
)

// ErrorIngestionFailed names a failed execution once compensation ran.
const ErrorIngestionFailed = "IngestionFailed"

type GraphOptions struct {
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
	TranscodeTimeout time.Duration `mapstructure:"transcode_timeout"`
	CompanionWait    time.Duration `mapstructure:"companion_wait"`
}

func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		ExecutionTimeout: 10 * time.Hour,
		TranscodeTimeout: 4 * time.Hour,
		CompanionWait:    2 * time.Minute,
	}
}

// BuildGraph returns the ingestion workflow. Everything runs inside the
// single-branch Ingest state, whose catcher is the only one in the graph.
func BuildGraph(opts GraphOptions) *workflow.Graph {
	return &workflow.Graph{
		Comment:        "Media ingestion",
		StartAt:        StateIngest,
		TimeoutSeconds: seconds(opts.ExecutionTimeout),
		States: map[string]*workflow.State{
			StateIngest: {
				Type:     workflow.TypeParallel,
				Branches: []*workflow.Graph{mainBranch(opts)},
				Catch:    []workflow.Catcher{{ErrorEquals: []string{workflow.ErrorAll}, Next: StateProcessFailure}},
				Next:     StateSuccess,
			},
			StateSuccess:        {Type: workflow.TypeSucceed},
			StateProcessFailure: task(StateProcessFailure, StateFailureTerminal),
			StateFailureTerminal: {
				Type:  workflow.TypeFail,
				Error: ErrorIngestionFailed,
				Cause: "ingestion failed; the object was quarantined and the uploader notified",
			},
		},
	}
}

func mainBranch(opts GraphOptions) *workflow.Graph {
	states := map[string]*workflow.State{
		StateRejectEmptyFiles: task(StateRejectEmptyFiles, StateCheckIfSpecial),
		StateCheckIfSpecial: {
			Type:    workflow.TypeChoice,
			Choices: []workflow.ChoiceRule{{Condition: condIsSpecial, Next: StateProcessSpecialFile}},
			Default: StateMetadataChecks,
		},
		StateProcessSpecialFile:     task(StateProcessSpecialFile, StateProcessSuccess),
		StateMetadataChecks:         task(StateMetadataChecks, StateCheckCatalogForItem),
		StateCheckCatalogForItem:    task(StateCheckCatalogForItem, StateDownloadMedia),
		StateDownloadMedia:          task(StateDownloadMedia, StateCheckIfConsumed),
		StateCheckIfConsumed: {
			Type:    workflow.TypeChoice,
			Comment: "A DAMSmart original already cataloged by its companion",
			Choices: []workflow.ChoiceRule{{Condition: condOutcomeDone, Next: StateProcessSuccess}},
			Default: StateDetectAndValidateMedia,
		},
		StateDetectAndValidateMedia: task(StateDetectAndValidateMedia, StateCheckMetadataReady),
		StateCheckMetadataReady:     task(StateCheckMetadataReady, StateCheckIfDamsmart),
		StateCheckIfDamsmart: {
			Type:    workflow.TypeChoice,
			Choices: []workflow.ChoiceRule{{Condition: condIsDamsmart, Next: StateDamsmartInit}},
			Default: StateMediaTypeChoice,
		},
		StateAddToCatalog:   task(StateAddToCatalog, StateProcessSuccess),
		StateProcessSuccess: endTask(StateProcessSuccess),

		StateDamsmartInit:           task(StateDamsmartInit, StateCheckDamsmartCompanion),
		StateCheckDamsmartCompanion: task(StateCheckDamsmartCompanion, StateDamsmartOutcome),
		StateDamsmartOutcome: {
			Type: workflow.TypeChoice,
			Choices: []workflow.ChoiceRule{
				{Condition: condOutcomeWait, Next: StateDamsmartRetryLimit},
				{Condition: condOutcomeDone, Next: StateProcessSuccess},
				{Condition: condOutcomePair, Next: StateDamsmartFanOut},
			},
		},
		StateDamsmartRetryLimit: {
			Type:    workflow.TypeChoice,
			Choices: []workflow.ChoiceRule{{Condition: condRetryLimitReached, Next: StateRetryLimitExceeded}},
			Default: StateDamsmartIncrement,
		},
		StateDamsmartIncrement: task(StateDamsmartIncrement, StateDamsmartWait),
		StateDamsmartWait: {
			Type:    workflow.TypeWait,
			Seconds: seconds(opts.CompanionWait),
			Next:    StateCheckDamsmartCompanion,
		},
		StateRetryLimitExceeded: {
			Type:  workflow.TypeFail,
			Error: ingest.ErrNameRetryLimitExceeded,
			Cause: fmt.Sprintf("companion file did not arrive within %s",
				time.Duration(steps.CompanionCheckLimit)*opts.CompanionWait),
		},
		StateDamsmartFanOut: {
			Type:     workflow.TypeParallel,
			Comment:  "Catalog the primary file and its companion; both must finish",
			Branches: []*workflow.Graph{primaryBranch(opts), companionBranch(opts)},
			Join:     joinPair,
			Next:     StateProcessSuccess,
		},
	}
	addMediaDispatch(states, opts, StateAddToCatalog)
	return &workflow.Graph{StartAt: StateRejectEmptyFiles, States: states}
}

func primaryBranch(opts GraphOptions) *workflow.Graph {
	states := map[string]*workflow.State{
		StateAddToCatalog: endTask(StateAddToCatalog),
	}
	addMediaDispatch(states, opts, StateAddToCatalog)
	return &workflow.Graph{StartAt: StateMediaTypeChoice, States: states}
}

func companionBranch(opts GraphOptions) *workflow.Graph {
	states := map[string]*workflow.State{
		StatePrepareCompanion:       task(StatePrepareCompanion, StateDownloadMedia),
		StateDownloadMedia:          task(StateDownloadMedia, StateDetectAndValidateMedia),
		StateDetectAndValidateMedia: task(StateDetectAndValidateMedia, StateMediaTypeChoice),
		StateAddToCatalog:           endTask(StateAddToCatalog),
	}
	addMediaDispatch(states, opts, StateAddToCatalog)
	return &workflow.Graph{StartAt: StatePrepareCompanion, States: states}
}

// addMediaDispatch adds the four media sub-pipelines, all converging on next.
func addMediaDispatch(states map[string]*workflow.State, opts GraphOptions, next string) {
	states[StateMediaTypeChoice] = &workflow.State{
		Type: workflow.TypeChoice,
		Choices: []workflow.ChoiceRule{
			{Condition: condAudio, Next: StateTranscodeAudio},
			{Condition: condVideo, Next: StateTranscodeVideo},
			{Condition: condImage, Next: StateConvertImage},
			{Condition: condOther, Next: StateExtractOtherMetadata},
		},
		Default: StateUnsupportedMediaType,
	}
	states[StateTranscodeAudio] = timed(task(StateTranscodeAudio, StateExtractAudioMetadata), opts.TranscodeTimeout)
	states[StateExtractAudioMetadata] = task(StateExtractAudioMetadata, next)
	states[StateTranscodeVideo] = timed(task(StateTranscodeVideo, StateExtractVideoMetadata), opts.TranscodeTimeout)
	states[StateExtractVideoMetadata] = task(StateExtractVideoMetadata, next)
	states[StateConvertImage] = timed(task(StateConvertImage, StateExtractImageMetadata), opts.TranscodeTimeout)
	states[StateExtractImageMetadata] = task(StateExtractImageMetadata, next)
	states[StateExtractOtherMetadata] = task(StateExtractOtherMetadata, next)
	states[StateUnsupportedMediaType] = &workflow.State{
		Type:  workflow.TypeFail,
		Error: ingest.ErrNameUnsupportedMediaType,
		Cause: "media type is not one of audio, video, image or other",
	}
}

func task(resource, next string) *workflow.State {
	return &workflow.State{Type: workflow.TypeTask, Resource: resource, Next: next}
}

func endTask(resource string) *workflow.State {
	return &workflow.State{Type: workflow.TypeTask, Resource: resource, End: true}
}

func timed(s *workflow.State, d time.Duration) *workflow.State {
	s.TimeoutSeconds = seconds(d)
	return s
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
