package services

import (
	"time"

	"github.com/keladiary/core/internal/domain/entities"
)

func sampleNotes(now time.Time, newID func() string) []entities.Note {
	day := 24 * time.Hour
	return []entities.Note{
		{
			ID:        newID(),
			Title:     "欢迎使用克拉日常笔记",
			Content:   "<h2>🎉 欢迎使用克拉日常笔记应用！</h2><p>这是一个功能丰富的个人笔记和待办管理应用。</p><h3>✨ 主要功能：</h3><ul><li><strong>📝 笔记管理</strong> - 支持富文本编辑，让你的笔记更加生动</li><li><strong>🏷️ 标签系统</strong> - 为笔记添加标签，方便分类和查找</li><li><strong>📋 待办事项</strong> - 管理你的任务，设置优先级和截止日期</li><li><strong>🔍 全文搜索</strong> - 快速找到你需要的内容</li><li><strong>🎨 动态主题</strong> - 多种精美主题，个性化你的使用体验</li></ul><p>开始记录你的想法和计划吧！</p>",
			Tags:      []string{"欢迎", "指南"},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        newID(),
			Title:     "今日学习计划",
			Content:   "<h3>📚 今日学习目标</h3><ul><li>复习Vue.js组件通信</li><li>学习TypeScript高级类型</li><li>练习算法题 - 二叉树遍历</li></ul><h3>📖 学习笔记</h3><p>Vue.js中父子组件通信的几种方式：</p><ol><li><strong>Props</strong> - 父组件向子组件传递数据</li><li><strong>Events</strong> - 子组件向父组件发送事件</li><li><strong>v-model</strong> - 双向数据绑定</li><li><strong>Provide/Inject</strong> - 跨层级组件通信</li></ol>",
			Tags:      []string{"学习", "编程", "Vue.js"},
			CreatedAt: now.Add(-day),
			UpdatedAt: now.Add(-day),
		},
		{
			ID:        newID(),
			Title:     "周末计划",
			Content:   "<h3>🎯 本周末安排</h3><h4>Saturday</h4><ul><li>🌅 早起晨跑</li><li>🛒 去超市采购</li><li>👨‍👩‍👧‍👦 和家人聚餐</li><li>📚 阅读新书《深入理解计算机系统》</li></ul><h4>Sunday</h4><ul><li>🧹 整理房间</li><li>💻 完成个人项目</li><li>🎬 看电影放松</li><li>📝 写周总结</li></ul><p><em>记得劳逸结合，保持良好的生活节奏！</em></p>",
			Tags:      []string{"生活", "计划"},
			CreatedAt: now.Add(-2 * day),
			UpdatedAt: now.Add(-2 * day),
		},
	}
}

func sampleTodos(now time.Time, newID func() string) []entities.Todo {
	return []entities.Todo{
		{
			ID:          newID(),
			Title:       "完成项目文档",
			Description: "整理项目的技术文档和用户手册，确保内容完整准确",
			Priority:    entities.PriorityHigh,
			DueDate:     entities.DateKey(now.AddDate(0, 0, 1)),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          newID(),
			Title:       "学习Vue 3新特性",
			Description: "深入了解Composition API、Teleport等新功能",
			Priority:    entities.PriorityMedium,
			DueDate:     entities.DateKey(now.AddDate(0, 0, 7)),
			CreatedAt:   now.Add(-time.Hour),
			UpdatedAt:   now.Add(-time.Hour),
		},
		{
			ID:          newID(),
			Title:       "整理桌面文件",
			Description: "清理桌面上的临时文件，整理文档分类",
			Completed:   true,
			Priority:    entities.PriorityLow,
			CreatedAt:   now.Add(-24 * time.Hour),
			UpdatedAt:   now.Add(-2 * time.Hour),
		},
		{
			ID:          newID(),
			Title:       "准备周会汇报",
			Description: "总结本周工作进展，准备下周计划",
			Priority:    entities.PriorityMedium,
			CreatedAt:   now.Add(-48 * time.Hour),
			UpdatedAt:   now.Add(-48 * time.Hour),
		},
	}
}

func sampleBoard(now time.Time, newID func() string) entities.Board {
	label := func(id string) entities.Label {
		l, _ := entities.LabelByID(id)
		return l
	}

	board := entities.Board{
		ID:        newID(),
		Title:     "我的第一个项目",
		UserID:    1,
		CreatedAt: now,
		Lists: []entities.List{
			{
				ID:        newID(),
				Title:     "待办事项",
				CreatedAt: now,
				Cards: []entities.Card{
					{ID: newID(), Title: "设计用户界面", Description: "创建登录和注册页面的UI设计", Priority: entities.PriorityHigh, Labels: []entities.Label{label("label-1"), label("label-6")}, CreatedAt: now},
					{ID: newID(), Title: "实现后端API", Description: "开发用户认证相关的API接口", Priority: entities.PriorityMedium, Labels: []entities.Label{label("label-7"), label("label-10")}, CreatedAt: now},
				},
			},
			{
				ID:        newID(),
				Title:     "进行中",
				CreatedAt: now,
				Cards: []entities.Card{
					{ID: newID(), Title: "数据库设计", Description: "设计用户、看板、列表、卡片的数据表结构", Priority: entities.PriorityHigh, Labels: []entities.Label{label("label-3"), label("label-6")}, CreatedAt: now},
				},
			},
			{
				ID:        newID(),
				Title:     "已完成",
				CreatedAt: now,
				Cards: []entities.Card{
					{ID: newID(), Title: "项目初始化", Description: "创建Vue.js项目并配置基础环境", Priority: entities.PriorityLow, Labels: []entities.Label{label("label-5"), label("label-7")}, CreatedAt: now},
				},
			},
		},
	}

	board.ReindexLists()
	for i := range board.Lists {
		l := &board.Lists[i]
		l.BoardID = board.ID
		l.ReindexCards()
		for j := range l.Cards {
			l.Cards[j].ListID = l.ID
		}
	}
	return board
}
