package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ariannamethod/body/artifacts"
	"github.com/ariannamethod/body/collab"
	"github.com/ariannamethod/body/perception"
	"github.com/ariannamethod/body/resonance"
	"github.com/ariannamethod/body/types"
)

// bridgeResponder 是内置的推理协作者占位实现：外部推理引擎不在本仓库
// 范围内，这里以一套小型文本命令语法直接暴露感知与协作操作，
// 伴生客户端无需推理引擎即可驱动整座桥
//
//	perceive <channel> [context...]          单通道捕获
//	moment [context...]                      全通道并发捕获
//	collaborate <target[,target]> <body...>  外发协作消息
//	reply <target> <text...>                 手工回灌一条回复
//	history [kind] [limit]                   查看最近共鸣日志
//	artifacts [limit]                        列出最近媒体工件
type bridgeResponder struct {
	orchestrator *perception.Orchestrator
	dispatcher   *collab.Dispatcher
	log          resonance.Log
	store        artifacts.Store
	logger       *zap.Logger
}

func newBridgeResponder(o *perception.Orchestrator, d *collab.Dispatcher, log resonance.Log, store artifacts.Store, logger *zap.Logger) *bridgeResponder {
	return &bridgeResponder{
		orchestrator: o,
		dispatcher:   d,
		log:          log,
		store:        store,
		logger:       logger.With(zap.String("component", "bridge_responder")),
	}
}

// Respond implements gateway.Responder.
func (b *bridgeResponder) Respond(ctx context.Context, userText string) (string, error) {
	fields := strings.Fields(userText)
	if len(fields) == 0 {
		return b.usage(), nil
	}

	switch fields[0] {
	case "perceive":
		return b.perceive(ctx, fields[1:])
	case "moment":
		return b.moment(ctx, strings.Join(fields[1:], " "))
	case "collaborate":
		return b.collaborate(ctx, fields[1:])
	case "reply":
		return b.reply(ctx, fields[1:])
	case "history":
		return b.history(ctx, fields[1:])
	case "artifacts":
		return b.artifacts(ctx, fields[1:])
	default:
		return b.usage(), nil
	}
}

func (b *bridgeResponder) perceive(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "usage: perceive <camera|microphone|gps|accelerometer> [context...]", nil
	}
	kind := types.ChannelKind(args[0])
	if !kind.Valid() {
		return fmt.Sprintf("unknown channel %q", args[0]), nil
	}

	result, err := b.orchestrator.Perceive(ctx, kind, strings.Join(args[1:], " "), nil)
	if err != nil {
		return "", err
	}
	return describeCapture(result), nil
}

func (b *bridgeResponder) moment(ctx context.Context, contextLabel string) (string, error) {
	results := b.orchestrator.PerceiveMoment(ctx, contextLabel,
		types.ChannelCamera, types.ChannelMicrophone,
		types.ChannelGPS, types.ChannelAccelerometer,
	)

	var sb strings.Builder
	for _, kind := range []types.ChannelKind{
		types.ChannelCamera, types.ChannelMicrophone,
		types.ChannelGPS, types.ChannelAccelerometer,
	} {
		if r, ok := results[kind]; ok {
			sb.WriteString(describeCapture(r))
			sb.WriteByte('\n')
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *bridgeResponder) collaborate(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "usage: collaborate <target[,target]> <message...>", nil
	}

	var targets []types.TargetApp
	for _, raw := range strings.Split(args[0], ",") {
		target := types.TargetApp(raw)
		if !target.Valid() {
			return fmt.Sprintf("unknown target %q", raw), nil
		}
		targets = append(targets, target)
	}

	sent, err := b.dispatcher.Dispatch(ctx, strings.Join(args[1:], " "), targets...)
	if err != nil {
		code := types.GetErrorCode(err)
		if code == types.ErrDispatchPending || code == types.ErrDeliveryFailed {
			return fmt.Sprintf("dispatch failed: %v", err), nil
		}
		return "", err
	}

	var sb strings.Builder
	for _, msg := range sent {
		fmt.Fprintf(&sb, "dispatched %s to %s\n", msg.ID, msg.Target)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *bridgeResponder) reply(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "usage: reply <target> <text...>", nil
	}
	target := types.TargetApp(args[0])
	if !target.Valid() {
		return fmt.Sprintf("unknown target %q", args[0]), nil
	}

	msg, err := b.dispatcher.AcceptReply(ctx, target, strings.Join(args[1:], " "))
	if err != nil {
		if types.GetErrorCode(err) == types.ErrUnmatchedReply {
			return fmt.Sprintf("no pending message for %s; reply kept as dialogue", target), nil
		}
		return "", err
	}
	return fmt.Sprintf("reply matched to %s", msg.ID), nil
}

func (b *bridgeResponder) history(ctx context.Context, args []string) (string, error) {
	kind := types.EntryKind("")
	limit := 10
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil && n > 0 {
			limit = n
			continue
		}
		kind = types.EntryKind(arg)
		if !kind.Valid() {
			return fmt.Sprintf("unknown entry kind %q", arg), nil
		}
	}

	entries, err := b.log.Recent(ctx, kind, limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "no entries", nil
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "#%d %s %s %s\n", e.Seq, e.Kind, e.Channel, truncate(e.Payload, 80))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *bridgeResponder) artifacts(ctx context.Context, args []string) (string, error) {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		}
	}

	list, err := b.store.List(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "no artifacts", nil
	}

	var sb strings.Builder
	for _, a := range list {
		fmt.Fprintf(&sb, "%s %s %dB\n", a.ID, a.Kind, a.Size)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *bridgeResponder) usage() string {
	return strings.Join([]string{
		"commands:",
		"  perceive <camera|microphone|gps|accelerometer> [context...]",
		"  moment [context...]",
		"  collaborate <target[,target]> <message...>",
		"  reply <target> <text...>",
		"  history [kind] [limit]",
		"  artifacts [limit]",
	}, "\n")
}

func describeCapture(r *types.CaptureResult) string {
	switch {
	case r.OK() && r.ArtifactID != "":
		return fmt.Sprintf("%s: ok, artifact %s", r.Request.Channel, r.ArtifactID)
	case r.OK():
		pairs := make([]string, 0, len(r.Data))
		for k, v := range r.Data {
			pairs = append(pairs, k+"="+v)
		}
		sort.Strings(pairs)
		return fmt.Sprintf("%s: ok, %s", r.Request.Channel, strings.Join(pairs, " "))
	default:
		return fmt.Sprintf("%s: %s (%s)", r.Request.Channel, r.Status, r.Err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
