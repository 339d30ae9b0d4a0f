package plugins

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/Malowking/agentchat/core/agent_tools"
	"github.com/Malowking/agentchat/core/errors"
	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/os/gfile"
	"github.com/google/uuid"
)

// DashScope 异步任务状态
const (
	taskSucceeded = "SUCCEEDED"
	taskFailed    = "FAILED"
	taskCanceled  = "CANCELED"
	taskUnknown   = "UNKNOWN"
)

type imageTaskResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Output  struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Code       string `json:"code"`
		Message    string `json:"message"`
		Results    []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"output"`
}

// Text2Image 通义万相文生图，图片保存到导出目录
func (p *Plugins) Text2Image() agent_tools.Tool {
	return agent_tools.NewLocalTool(NameText2Image, "将用户的图片描述文本生成一张图片，返回图片链接",
		map[string]*schema.ParameterInfo{
			"user_prompt": {Type: schema.String, Desc: "用户想要生成图片的prompt", Required: true},
		},
		p.textToImage)
}

func (p *Plugins) textToImage(ctx context.Context, args map[string]any) (string, error) {
	prompt := agent_tools.StringArg(args, "user_prompt")
	if prompt == "" {
		return "", errors.New(errors.ErrInvalidParameter, "text_to_image: user_prompt 不能为空")
	}
	conf := p.conf.Text2Image

	c := p.httpClient().ContentJson()
	c.SetHeader("Authorization", "Bearer "+conf.APIKey)
	c.SetHeader("X-DashScope-Async", "enable")
	resp, err := c.Post(ctx, conf.Endpoint+"/services/aigc/text2image/image-synthesis", g.Map{
		"model":      conf.Model,
		"input":      g.Map{"prompt": prompt},
		"parameters": g.Map{"size": conf.Size, "n": 1},
	})
	raw, err := readOK(ctx, NameText2Image, resp, err)
	if err != nil {
		return "", err
	}
	var task imageTaskResp
	if err := sonic.Unmarshal(raw, &task); err != nil {
		return "", errors.Wrapf(err, errors.ErrToolFailed, "text_to_image: 响应解析失败")
	}
	if task.Output.TaskID == "" {
		return "", errors.Newf(errors.ErrToolFailed, "text_to_image: 创建任务失败 %s %s", task.Code, task.Message)
	}

	imageURL, err := p.waitImage(ctx, task.Output.TaskID)
	if err != nil {
		return "", err
	}
	link, err := p.saveImage(ctx, imageURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("您的图片已经生成完毕，图片链接为：![图片](%s)", link), nil
}

// waitImage 轮询任务直到成功或失败
func (p *Plugins) waitImage(ctx context.Context, taskID string) (string, error) {
	conf := p.conf.Text2Image
	ticker := time.NewTicker(conf.PollInterval)
	defer ticker.Stop()

	for {
		c := p.httpClient()
		c.SetHeader("Authorization", "Bearer "+conf.APIKey)
		resp, err := c.Get(ctx, conf.Endpoint+"/tasks/"+taskID)
		raw, err := readOK(ctx, NameText2Image, resp, err)
		if err != nil {
			return "", err
		}
		var task imageTaskResp
		if err := sonic.Unmarshal(raw, &task); err != nil {
			return "", errors.Wrapf(err, errors.ErrToolFailed, "text_to_image: 响应解析失败")
		}

		switch task.Output.TaskStatus {
		case taskSucceeded:
			for _, r := range task.Output.Results {
				if r.URL != "" {
					return r.URL, nil
				}
			}
			return "", errors.Newf(errors.ErrToolFailed, "text_to_image: 任务 %s 没有返回图片", taskID)
		case taskFailed, taskCanceled, taskUnknown:
			return "", errors.Newf(errors.ErrToolFailed, "text_to_image: 任务 %s %s: %s %s",
				taskID, task.Output.TaskStatus, task.Output.Code, task.Output.Message)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// saveImage 下载图片写入 <exportDir>/images，返回相对下载地址
func (p *Plugins) saveImage(ctx context.Context, imageURL string) (string, error) {
	resp, err := p.httpClient().Get(ctx, imageURL)
	content, err := readOK(ctx, NameText2Image, resp, err)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ".png"
	if u, err := url.Parse(imageURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." && base != ".." {
			name = base
		}
	}
	dir := filepath.Join(p.conf.ExportDir, "images")
	if !gfile.Exists(dir) {
		if err := gfile.Mkdir(dir); err != nil {
			return "", errors.Wrapf(err, errors.ErrToolFailed, "failed to create directory %s", dir)
		}
	}
	if err := gfile.PutBytes(filepath.Join(dir, name), content); err != nil {
		return "", errors.Wrapf(err, errors.ErrToolFailed, "failed to write image %s", name)
	}
	g.Log().Infof(ctx, "text_to_image saved %s, size: %d bytes", name, len(content))
	return "/" + filepath.ToSlash(filepath.Join(filepath.Base(p.conf.ExportDir), "images", name)), nil
}
