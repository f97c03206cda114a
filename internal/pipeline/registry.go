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

package pipeline

import (
	"github.com/cardinalhq/mediarunner/internal/ingest"
	"github.com/cardinalhq/mediarunner/internal/steps"
	"github.com/cardinalhq/mediarunner/internal/workflow"
)

// NewRegistry binds every state, condition and join of BuildGraph.
func NewRegistry(s *steps.Steps, comp *Compensator, fin *Finalizer) *workflow.Registry[ingest.Record] {
	return workflow.NewRegistry[ingest.Record]().
		Task(StateRejectEmptyFiles, s.RejectEmptyFiles).
		Task(StateProcessSpecialFile, s.ProcessSpecialFile).
		Task(StateMetadataChecks, s.MetadataChecks).
		Task(StateCheckCatalogForItem, s.CheckCatalogForItem).
		Task(StateDownloadMedia, s.DownloadMedia).
		Task(StateDetectAndValidateMedia, s.DetectAndValidateMedia).
		Task(StateCheckMetadataReady, s.CheckMetadataReady).
		Task(StateTranscodeAudio, s.TranscodeAudio).
		Task(StateExtractAudioMetadata, s.ExtractAudioMetadata).
		Task(StateTranscodeVideo, s.TranscodeVideo).
		Task(StateExtractVideoMetadata, s.ExtractVideoMetadata).
		Task(StateConvertImage, s.ConvertImage).
		Task(StateExtractImageMetadata, s.ExtractImageMetadata).
		Task(StateExtractOtherMetadata, s.ExtractOtherMetadata).
		Task(StateAddToCatalog, s.AddToCatalog).
		Task(StateDamsmartInit, s.DamsmartInit).
		Task(StateCheckDamsmartCompanion, s.CheckDamsmartCompanion).
		Task(StateDamsmartIncrement, s.DamsmartIncrement).
		Task(StatePrepareCompanion, s.PrepareCompanion).
		Task(StateProcessSuccess, fin.Finalize).
		Task(StateProcessFailure, comp.Compensate).
		Condition(condIsSpecial, s.IsSpecial).
		Condition(condIsDamsmart, steps.IsDamsmart).
		Condition(condRetryLimitReached, steps.RetryLimitReached).
		Condition(condOutcomeWait, steps.OutcomeIs(ingest.OutcomeWait)).
		Condition(condOutcomeDone, steps.OutcomeIs(ingest.OutcomeCompanionDone)).
		Condition(condOutcomePair, steps.OutcomeIs(ingest.OutcomeCatalogPair)).
		Condition(condAudio, steps.MediaTypeIs(ingest.MediaTypeAudio)).
		Condition(condVideo, steps.MediaTypeIs(ingest.MediaTypeVideo)).
		Condition(condImage, steps.MediaTypeIs(ingest.MediaTypeImage)).
		Condition(condOther, steps.MediaTypeIs(ingest.MediaTypeOther)).
		Join(joinPair, s.JoinPair)
}
