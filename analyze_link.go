package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/linkmage/analyzer/groq"
	"github.com/linkmage/analyzer/models"
	"go.uber.org/zap"
)

const transcriptUnavailableMessage = "Transcript could not be retrieved for this video. Please check if the video has subtitles or try another link."

// AnalyzeLinkInput is a request to classify a link and pick its actions
type AnalyzeLinkInput struct {
	Link                   string
	ActionSet              int
	ManualType             string
	GenerateDynamicActions bool
}

// AnalyzeLink classifies a link and returns the action set requested by
// in.ActionSet. An unusable URL yields an "insufficient" analysis rather
// than an error; classification failures fall back to the default set and
// are reported in Warnings.
func (a *Analyzer) AnalyzeLink(ctx context.Context, in AnalyzeLinkInput) (*models.LinkAnalysis, error) {
	link := strings.TrimSpace(in.Link)
	if _, err := ParseTargetURL(link); err != nil {
		return &models.LinkAnalysis{
			Type:    "insufficient",
			Purpose: "Invalid URL provided",
			Actions: []models.Action{},
		}, nil
	}

	logger := a.logger.With(zap.String("link", link))
	var warnings []string

	videoID := VideoID(link)
	var video *videoContent
	if videoID != "" {
		video = a.analyzeVideo(ctx, videoID)
		warnings = append(warnings, video.warnings...)
	}

	if key, ok := a.actions.Lookup(in.ManualType); ok {
		sel := SelectActionSet(a.actions.Sets(key), in.ActionSet)
		analysis := &models.LinkAnalysis{
			Type:            key,
			Purpose:         fmt.Sprintf("User-selected %s content", key),
			Actions:         sel.Actions,
			TotalActionSets: sel.Total,
			NextActionSet:   sel.Next,
		}
		video.apply(analysis)
		analysis.Warnings = warnings
		return analysis, nil
	}

	youTubeType := youTubeContentType(link)

	var page *Page
	if youTubeType == "" {
		p, err := a.FetchPage(ctx, link, AnalyzeProfile)
		if err != nil {
			logger.Info("page fetch failed, classifying from URL only", zap.Error(err))
			warnings = append(warnings, "Page content unavailable, classifying from URL only")
		} else {
			if len([]rune(p.Text)) < 100 && p.Description != "" {
				p.Text = p.Description
			}
			page = p
		}
	}

	c, err := a.classify(ctx, link, page, youTubeType)
	if err != nil {
		logger.Warn("classification failed, using default action set", zap.Error(err))
		sets := a.actions.Sets(DefaultActionType)
		next := 1
		analysis := &models.LinkAnalysis{
			Type:            fallbackType,
			Purpose:         fallbackPurpose,
			Actions:         sets[0],
			TotalActionSets: len(sets),
			NextActionSet:   &next,
			Warnings:        append(warnings, "AI classification unavailable, using default action set"),
		}
		if page != nil {
			analysis.Title = page.Title
		}
		video.apply(analysis)
		return analysis, nil
	}

	contentType := strings.ToLower(c.Type)
	sets := a.actions.Sets(a.actions.Resolve(contentType))
	sel := SelectActionSet(sets, in.ActionSet)

	analysis := &models.LinkAnalysis{
		Type:            c.Type,
		Purpose:         c.Purpose,
		Actions:         sel.Actions,
		TotalActionSets: sel.Total,
		NextActionSet:   sel.Next,
	}
	if page != nil {
		analysis.Title = page.Title
	}

	if in.GenerateDynamicActions && sel.Exhausted() {
		summary := ""
		if video != nil {
			summary = video.summary
		} else if page != nil {
			summary = prefix(page.Text, 500)
		}

		actions, err := a.dynamicActions(ctx, link, contentType, summary)
		if err != nil {
			logger.Warn("dynamic action generation failed, using default actions", zap.Error(err))
			actions = a.actions.Sets(DefaultActionType)[0]
			warnings = append(warnings, "Dynamic actions unavailable, using default actions")
		}
		analysis.Actions = actions
		analysis.NextActionSet = nil
		analysis.IsDynamic = true
	}

	video.apply(analysis)
	analysis.Warnings = warnings
	return analysis, nil
}

// videoContent is the transcript analysis attached to YouTube results
type videoContent struct {
	summary   string
	available bool
	warnings  []string
}

func (v *videoContent) apply(analysis *models.LinkAnalysis) {
	if v == nil {
		return
	}
	available := v.available
	analysis.ContentAvailable = &available
	if available {
		analysis.ContentAnalysis = v.summary
	} else {
		analysis.ContentMessage = transcriptUnavailableMessage
	}
}

// analyzeVideo fetches and summarizes the transcript of a video. An empty
// transcript is never sent to the model.
func (a *Analyzer) analyzeVideo(ctx context.Context, videoID string) *videoContent {
	logger := a.logger.With(zap.String("video_id", videoID))

	transcript := a.transcript(ctx, videoID)
	if transcript == "" {
		logger.Info("no transcript available")
		return &videoContent{}
	}

	summary, err := a.summarizeTranscript(ctx, videoID, transcript)
	if err != nil {
		logger.Warn("transcript summary failed", zap.Error(err))
		return &videoContent{
			summary:   "Unable to generate summary due to an error",
			available: true,
			warnings:  []string{"AI transcript summary unavailable"},
		}
	}
	return &videoContent{summary: summary, available: true}
}

// transcript returns the trimmed transcript of a video, or "" when none is
// available.
func (a *Analyzer) transcript(ctx context.Context, videoID string) string {
	if a.transcripts == nil {
		return ""
	}
	text, err := a.transcripts.Transcript(ctx, videoID)
	if err != nil {
		a.logger.Info("transcript fetch failed", zap.String("video_id", videoID), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

func (a *Analyzer) summarizeTranscript(ctx context.Context, videoID, transcript string) (string, error) {
	prompt := fmt.Sprintf(`You are analyzing a YouTube video transcript. Please provide a comprehensive summary with the following structure:

Video ID: %s

Transcript:
%s

Please create a well-formatted summary with:

**Video Overview**
- What is this video about based on the transcript?
- What type of content is this (tutorial, review, entertainment, educational, etc.)?

**Key Topics Covered**
- What specific topics, subjects, or themes does this video discuss?
- What are the main points or key takeaways?

**Content Analysis**
- What are the most important insights from the video?
- What value does this video provide to viewers?

**Target Audience**
- Who would be most interested in this video?
- What level of expertise is required?

**Key Insights**
- What are the most important aspects of this video?
- What makes this content unique or valuable?

Format the response with clear headings and use bullet points where appropriate. Be specific and accurate based on the actual transcript content.`,
		videoID, truncate(transcript, a.config.TranscriptCharLimit))

	summary, err := a.complete(ctx, groq.Request{
		Operation:   "summarize_transcript",
		System:      "You are an expert at analyzing YouTube video transcripts. Provide accurate, specific analysis based on the actual transcript content. Be detailed and helpful.",
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "Unable to generate summary", nil
	}
	return summary, nil
}
